package domain

// Transform converts a monthly level series into the representation used
// for correlation: raw level, period-over-period percent change, or
// year-over-year percent change.
type Transform string

const (
	TransformLevel  Transform = "level"
	TransformReturn Transform = "return"
	TransformYoY    Transform = "yoy"
)

// Mode selects the pipeline-wide transform policy. In ModeLevels every
// series passes through as a level regardless of its configured transform;
// in ModeReturns each series uses its configured transform (level-configured
// series stay levels, which is the useful behavior for yields and spreads).
type Mode string

const (
	ModeLevels  Mode = "levels"
	ModeReturns Mode = "returns"
)

// ParseTransform validates a configured transform string.
func ParseTransform(s string) (Transform, error) {
	switch Transform(s) {
	case TransformLevel, TransformReturn, TransformYoY:
		return Transform(s), nil
	case "":
		return TransformLevel, nil
	default:
		return "", &ConfigError{Field: "transform", Reason: "unknown transform '" + s + "'"}
	}
}

// ParseMode validates a pipeline mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLevels, ModeReturns:
		return Mode(s), nil
	default:
		return "", &ConfigError{Field: "mode", Reason: "must be 'levels' or 'returns', got '" + s + "'"}
	}
}

// EffectiveTransform resolves the transform actually applied to a series
// under the given pipeline mode.
func EffectiveTransform(mode Mode, configured Transform) Transform {
	if mode == ModeLevels {
		return TransformLevel
	}
	return configured
}

// ApplyTransform returns a series over the same month domain with values
// converted per the transform. Percent changes are missing where either
// side of the ratio is missing. The year-over-year change lags by calendar
// month, not by row position: a gap in the month index never shifts the
// comparison point.
func ApplyTransform(s MonthlySeries, tr Transform) (MonthlySeries, error) {
	switch tr {
	case TransformLevel:
		return s, nil
	case TransformReturn:
		return periodChange(s), nil
	case TransformYoY:
		return yearOverYear(s), nil
	default:
		return MonthlySeries{}, &ConfigError{Field: "transform", Reason: "unknown transform '" + string(tr) + "'"}
	}
}

func periodChange(s MonthlySeries) MonthlySeries {
	out := MonthlySeries{
		Months: s.Months,
		Values: make([]float64, s.Len()),
	}
	for i := range s.Values {
		if i == 0 {
			out.Values[i] = Missing()
			continue
		}
		prev, cur := s.Values[i-1], s.Values[i]
		if IsMissing(prev) || IsMissing(cur) || prev == 0 {
			out.Values[i] = Missing()
			continue
		}
		out.Values[i] = (cur/prev - 1) * 100
	}
	return out
}

func yearOverYear(s MonthlySeries) MonthlySeries {
	byMonth := make(map[int]float64, s.Len())
	for i, m := range s.Months {
		byMonth[monthKey(m)] = s.Values[i]
	}
	out := MonthlySeries{
		Months: s.Months,
		Values: make([]float64, s.Len()),
	}
	for i, m := range s.Months {
		lag, ok := byMonth[monthKey(m)-12]
		cur := s.Values[i]
		if !ok || IsMissing(lag) || IsMissing(cur) || lag == 0 {
			out.Values[i] = Missing()
			continue
		}
		out.Values[i] = (cur/lag - 1) * 100
	}
	return out
}
