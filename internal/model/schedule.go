package model

// Schedule is the frequency-keyed part of a task. The set of variants is
// closed: Daily, Weekly and OneTime.
type Schedule interface {
	Frequency() Frequency
	apply(*TaskInput)
}

// Daily recurs every day, optionally restricted to the given weekdays
// (0=Sunday..6=Saturday).
type Daily struct {
	Days []int
}

func (Daily) Frequency() Frequency { return FrequencyDaily }

func (d Daily) apply(in *TaskInput) {
	in.Frequency = FrequencyDaily
	in.RecurrenceDays = d.Days
	in.DueDate = nil
}

// Weekly recurs on a rolling seven-day period, optionally restricted to the
// given weekdays.
type Weekly struct {
	Days []int
}

func (Weekly) Frequency() Frequency { return FrequencyWeekly }

func (w Weekly) apply(in *TaskInput) {
	in.Frequency = FrequencyWeekly
	in.RecurrenceDays = w.Days
	in.DueDate = nil
}

// OneTime happens once; DueDate (YYYY-MM-DD) is optional.
type OneTime struct {
	DueDate string
}

func (OneTime) Frequency() Frequency { return FrequencyOneTime }

func (o OneTime) apply(in *TaskInput) {
	in.Frequency = FrequencyOneTime
	in.RecurrenceDays = nil
	if o.DueDate != "" {
		due := o.DueDate
		in.DueDate = &due
	} else {
		in.DueDate = nil
	}
}
