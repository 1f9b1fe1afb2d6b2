package model

import (
	"reflect"
	"testing"
)

func TestScheduleVariants(t *testing.T) {
	due := "2024-02-01"
	tests := []struct {
		name string
		task Task
		want Schedule
	}{
		{"daily", Task{Frequency: FrequencyDaily, RecurrenceDays: []int{1, 3}}, Daily{Days: []int{1, 3}}},
		{"weekly", Task{Frequency: FrequencyWeekly, RecurrenceDays: []int{6}}, Weekly{Days: []int{6}}},
		{"one-time with due date", Task{Frequency: FrequencyOneTime, DueDate: &due}, OneTime{DueDate: due}},
		{"one-time without due date", Task{Frequency: FrequencyOneTime}, OneTime{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.Schedule(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Schedule() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestInputOfRoundTripsThroughApply(t *testing.T) {
	points := 15
	dueTime := "18:00"
	due := "2024-02-01"
	tests := []struct {
		name string
		task Task
	}{
		{"daily", Task{
			Title: "Feed the cat", Description: "Wet food", AssignedTo: "kid-1", CreatedBy: "parent-1",
			Frequency: FrequencyDaily, Points: &points, DueTime: &dueTime,
			TimeWindow: &TimeWindow{Start: "07:00", End: "09:00"}, RecurrenceDays: []int{1, 2, 3, 4, 5},
			IsResponsibility: true,
		}},
		{"weekly", Task{Title: "Clean room", AssignedTo: "kid-1", Frequency: FrequencyWeekly, RecurrenceDays: []int{6}}},
		{"one-time", Task{Title: "Science project", AssignedTo: "kid-1", Frequency: FrequencyOneTime, DueDate: &due, IsSchool: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := InputOf(tt.task)
			if in.Frequency != tt.task.Frequency {
				t.Errorf("frequency = %q, want %q", in.Frequency, tt.task.Frequency)
			}
			var got Task
			in.Apply(&got)
			if !reflect.DeepEqual(got, tt.task) {
				t.Errorf("apply(InputOf(task)) = %+v, want %+v", got, tt.task)
			}
		})
	}
}

func TestInputOfDropsFieldsOutsideSchedule(t *testing.T) {
	due := "2024-02-01"
	in := InputOf(Task{Title: "Feed the cat", AssignedTo: "kid-1", Frequency: FrequencyDaily, DueDate: &due})
	if in.DueDate != nil {
		t.Errorf("daily input kept due date %q", *in.DueDate)
	}

	in = InputOf(Task{Title: "Science project", AssignedTo: "kid-1", Frequency: FrequencyOneTime, RecurrenceDays: []int{1}})
	if in.RecurrenceDays != nil {
		t.Errorf("one-time input kept recurrence days %v", in.RecurrenceDays)
	}
}
