package recurrence

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

var (
	// DTSTART;TZID=America/Sao_Paulo:... -> DTSTART:...
	zoneParamPattern = regexp.MustCompile(`(DTSTART|EXDATE|RDATE)(?:;[A-Za-z-]+=[^:;\n]*)+:`)
	// 20250318T190000Z -> 20250318T190000
	utcSuffixPattern = regexp.MustCompile(`(\d{8}T\d{6})[Zz]`)
)

var weekdayTokens = [...]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

// WeekdayToken returns the two-letter RRULE token for d
func WeekdayToken(d time.Weekday) string { return weekdayTokens[d] }

// ParseWeekdayToken maps "MO".."SU" to a time.Weekday
func ParseWeekdayToken(s string) (time.Weekday, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for d, tok := range weekdayTokens {
		if tok == s {
			return time.Weekday(d), nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

// Normalize strips zone designators (TZID parameters and Z suffixes) from a
// transport string so every timestamp reads as local wall clock.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = zoneParamPattern.ReplaceAllString(s, "$1:")
	s = utcSuffixPattern.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// Encode serializes a rule to its single-line transport form, e.g.
//
//	DTSTART:20250318T190000;RRULE:FREQ=MONTHLY;INTERVAL=1;BYDAY=TU;BYSETPOS=3;COUNT=10
//
// Timestamps never carry a zone.
func Encode(r Rule) string {
	r = r.Normalize()

	parts := []string{
		"DTSTART:" + r.Anchor.String(),
		"RRULE:FREQ=" + r.Frequency.String(),
		"INTERVAL=" + strconv.Itoa(r.Interval),
	}

	switch r.Frequency {
	case Weekly:
		if len(r.ByWeekday) > 0 {
			days := make([]string, len(r.ByWeekday))
			for i, d := range r.ByWeekday {
				days[i] = WeekdayToken(d)
			}
			parts = append(parts, "BYDAY="+strings.Join(days, ","))
		}
	case Monthly:
		switch r.MonthlyMode {
		case ByMonthDay:
			parts = append(parts, "BYMONTHDAY="+strconv.Itoa(r.Anchor.Day()))
		case ByWeekdayPosition:
			parts = append(parts,
				"BYDAY="+WeekdayToken(r.Anchor.Weekday()),
				"BYSETPOS="+strconv.Itoa(r.Position))
		}
	}

	switch r.Bound.Kind {
	case Count:
		parts = append(parts, "COUNT="+strconv.Itoa(r.Bound.Count))
	case Until:
		parts = append(parts, "UNTIL="+r.Bound.Until.String())
	}

	if len(r.ExcludeDates) > 0 {
		parts = append(parts, "EXDATE:"+joinLocal(r.ExcludeDates))
	}
	if len(r.IncludeDates) > 0 {
		parts = append(parts, "RDATE:"+joinLocal(r.IncludeDates))
	}

	return strings.Join(parts, ";")
}

func joinLocal(ts []LocalDateTime) string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return strings.Join(out, ",")
}

// Decode parses a transport string. It accepts the single-line form written
// by Encode as well as multi-line rule sets (DTSTART/RRULE/EXDATE/RDATE lines).
// When the strict parser fails, a lenient single-rule parser is tried before
// a *MalformedRuleError is returned.
func Decode(s string) (Rule, error) {
	rule, _, err := decode(s)
	return rule, err
}

// decode also reports whether the lenient fallback produced the result
func decode(s string) (Rule, bool, error) {
	normalized := Normalize(s)
	if normalized == "" {
		return Rule{}, false, malformed(s, "empty rule", nil)
	}

	rule, strictErr := parseStrict(normalized)
	if strictErr == nil {
		return rule, false, nil
	}

	rule, lenientErr := parseLenient(normalized)
	if lenientErr == nil {
		return rule, true, nil
	}

	return Rule{}, false, malformed(s, "unparseable", errors.Join(strictErr, lenientErr))
}

type ruleFields struct {
	dtstart    string
	freq       string
	interval   string
	count      string
	until      string
	byDay      []string
	byMonthDay string
	bySetPos   string
	exDates    []string
	rDates     []string
}

// splitProperty recognizes "NAME:VALUE" tokens; "KEY=VALUE" parts are not properties
func splitProperty(tok string) (string, string, bool) {
	colon := strings.IndexByte(tok, ':')
	if colon < 0 {
		return "", "", false
	}
	if eq := strings.IndexByte(tok, '='); eq >= 0 && eq < colon {
		return "", "", false
	}
	return strings.ToUpper(tok[:colon]), tok[colon+1:], true
}

func collectFields(s string) (ruleFields, error) {
	var f ruleFields

	tokens := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '\n' })
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}

		if name, value, ok := splitProperty(tok); ok {
			switch name {
			case "DTSTART":
				f.dtstart = value
				continue
			case "EXDATE":
				f.exDates = append(f.exDates, splitList(value)...)
				continue
			case "RDATE":
				f.rDates = append(f.rDates, splitList(value)...)
				continue
			case "RRULE":
				tok = value
				if tok == "" {
					continue
				}
			default:
				return f, fmt.Errorf("unsupported property %s", name)
			}
		}

		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return f, fmt.Errorf("invalid rule part %q", tok)
		}
		switch strings.ToUpper(key) {
		case "FREQ":
			f.freq = strings.ToUpper(value)
		case "INTERVAL":
			f.interval = value
		case "COUNT":
			f.count = value
		case "UNTIL":
			f.until = value
		case "BYDAY":
			f.byDay = splitList(value)
		case "BYMONTHDAY":
			f.byMonthDay = value
		case "BYSETPOS":
			f.bySetPos = value
		case "DTSTART":
			f.dtstart = value
		default:
			return f, fmt.Errorf("unsupported rule part %s", key)
		}
	}

	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseStrict(s string) (Rule, error) {
	f, err := collectFields(s)
	if err != nil {
		return Rule{}, err
	}

	var rule Rule

	if f.dtstart == "" {
		return Rule{}, errors.New("missing DTSTART")
	}
	if rule.Anchor, err = ParseLocal(f.dtstart); err != nil {
		return Rule{}, err
	}

	if f.freq == "" {
		return Rule{}, errors.New("missing FREQ")
	}
	if rule.Frequency, err = ParseFrequency(f.freq); err != nil {
		return Rule{}, err
	}

	rule.Interval = 1
	if f.interval != "" {
		n, err := strconv.Atoi(f.interval)
		if err != nil || n < 1 {
			return Rule{}, fmt.Errorf("invalid INTERVAL %q", f.interval)
		}
		rule.Interval = n
	}

	if rule.Bound, err = parseBound(f.count, f.until); err != nil {
		return Rule{}, err
	}

	if err := applyModifiers(&rule, f); err != nil {
		return Rule{}, err
	}

	if rule.ExcludeDates, err = parseDateList(f.exDates, rule.Anchor); err != nil {
		return Rule{}, fmt.Errorf("EXDATE: %w", err)
	}
	if rule.IncludeDates, err = parseDateList(f.rDates, rule.Anchor); err != nil {
		return Rule{}, fmt.Errorf("RDATE: %w", err)
	}

	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

func parseBound(count, until string) (Bound, error) {
	switch {
	case count != "" && until != "":
		return Bound{}, errors.New("COUNT and UNTIL are mutually exclusive")
	case count != "":
		n, err := strconv.Atoi(count)
		if err != nil || n < 1 {
			return Bound{}, fmt.Errorf("invalid COUNT %q", count)
		}
		return CountBound(n), nil
	case until != "":
		t, err := ParseLocal(until)
		if err != nil {
			return Bound{}, fmt.Errorf("invalid UNTIL: %w", err)
		}
		// A date-only UNTIL covers the whole day.
		if len(until) == len(localDateLayout) {
			t = t.EndOfDay()
		}
		return UntilBound(t), nil
	}
	return NoBound(), nil
}

// parseByDay splits "3TU" / "-1TU" / "MO" into position and weekday
func parseByDay(s string) (int, time.Weekday, error) {
	s = strings.ToUpper(s)
	if len(s) < 2 {
		return 0, 0, fmt.Errorf("invalid BYDAY %q", s)
	}
	day, err := ParseWeekdayToken(s[len(s)-2:])
	if err != nil {
		return 0, 0, err
	}
	prefix := s[:len(s)-2]
	if prefix == "" {
		return 0, day, nil
	}
	n, err := strconv.Atoi(prefix)
	if err != nil || n == 0 {
		return 0, 0, fmt.Errorf("invalid BYDAY position %q", s)
	}
	return n, day, nil
}

func normalizePosition(n int) (int, error) {
	switch {
	case n == -1 || n == 5:
		return LastPosition, nil
	case n >= 1 && n <= 4:
		return n, nil
	}
	return 0, fmt.Errorf("unsupported weekday position %d", n)
}

func applyModifiers(rule *Rule, f ruleFields) error {
	switch rule.Frequency {
	case Weekly:
		if f.byMonthDay != "" || f.bySetPos != "" {
			return errors.New("BYMONTHDAY/BYSETPOS are not valid for WEEKLY rules")
		}
		for _, tok := range f.byDay {
			pos, day, err := parseByDay(tok)
			if err != nil {
				return err
			}
			if pos != 0 {
				return fmt.Errorf("positional BYDAY %q in WEEKLY rule", tok)
			}
			rule.ByWeekday = append(rule.ByWeekday, day)
		}
		return nil

	case Monthly:
		if f.byMonthDay != "" {
			if len(f.byDay) > 0 || f.bySetPos != "" {
				return errors.New("BYMONTHDAY cannot be combined with BYDAY/BYSETPOS")
			}
			d, err := strconv.Atoi(f.byMonthDay)
			if err != nil || d != rule.Anchor.Day() {
				return fmt.Errorf("BYMONTHDAY %q must match the anchor day %d", f.byMonthDay, rule.Anchor.Day())
			}
			rule.MonthlyMode = ByMonthDay
			return nil
		}
		if len(f.byDay) == 0 {
			if f.bySetPos != "" {
				return errors.New("BYSETPOS without BYDAY")
			}
			return nil
		}
		if len(f.byDay) != 1 {
			return errors.New("monthly rules support a single BYDAY weekday")
		}
		pos, day, err := parseByDay(f.byDay[0])
		if err != nil {
			return err
		}
		if day != rule.Anchor.Weekday() {
			return fmt.Errorf("BYDAY %s does not match the anchor weekday", f.byDay[0])
		}
		if f.bySetPos != "" {
			if pos != 0 {
				return errors.New("BYSETPOS combined with positional BYDAY")
			}
			if pos, err = strconv.Atoi(f.bySetPos); err != nil {
				return fmt.Errorf("invalid BYSETPOS %q", f.bySetPos)
			}
		}
		if pos == 0 {
			pos = PositionOf(rule.Anchor)
		}
		if rule.Position, err = normalizePosition(pos); err != nil {
			return err
		}
		rule.MonthlyMode = ByWeekdayPosition
		return nil
	}

	if len(f.byDay) > 0 || f.byMonthDay != "" || f.bySetPos != "" {
		return fmt.Errorf("BY* modifiers are not supported for %s rules", rule.Frequency)
	}
	return nil
}

// parseDateList reads EXDATE/RDATE values; date-only values take the anchor's time of day
func parseDateList(values []string, anchor LocalDateTime) ([]LocalDateTime, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]LocalDateTime, 0, len(values))
	for _, v := range values {
		t, err := ParseLocal(v)
		if err != nil {
			return nil, err
		}
		if len(v) == len(localDateLayout) {
			t = NewLocalDateTime(t.Year(), t.Month(), t.Day(), anchor.Hour(), anchor.Minute(), anchor.Second())
		}
		out = append(out, t)
	}
	return out, nil
}

// parseLenient hands the primary rule to rrule-go and keeps the fields the
// model understands. Rule-set extras are dropped.
func parseLenient(s string) (Rule, error) {
	var dtstart string
	var body []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "DTSTART:"):
			dtstart = strings.TrimPrefix(line, "DTSTART:")
		case strings.HasPrefix(line, "RRULE:"):
			body = append(body, strings.TrimPrefix(line, "RRULE:"))
		case strings.HasPrefix(line, "FREQ="):
			body = append(body, line)
		}
	}

	// Single-line form: DTSTART:...;RRULE:...;EXDATE:...
	if len(body) == 0 && strings.HasPrefix(s, "DTSTART:") {
		for _, tok := range strings.Split(s, ";") {
			switch name, value, ok := splitProperty(tok); {
			case ok && name == "DTSTART":
				dtstart = value
			case ok && name == "RRULE":
				body = append(body, value)
			case ok:
			default:
				if len(body) > 0 {
					body = append(body, tok)
				}
			}
		}
	}

	if len(body) == 0 {
		return Rule{}, errors.New("no RRULE found")
	}
	text := strings.Join(body, ";")
	if dtstart != "" {
		text += ";DTSTART=" + dtstart
	}

	opt, err := rrule.StrToROptionInLocation(text, time.UTC)
	if err != nil {
		return Rule{}, err
	}
	return fromROption(*opt)
}

func fromROption(opt rrule.ROption) (Rule, error) {
	var rule Rule

	switch opt.Freq {
	case rrule.DAILY:
		rule.Frequency = Daily
	case rrule.WEEKLY:
		rule.Frequency = Weekly
	case rrule.MONTHLY:
		rule.Frequency = Monthly
	case rrule.YEARLY:
		rule.Frequency = Yearly
	default:
		return Rule{}, fmt.Errorf("unsupported frequency %v", opt.Freq)
	}

	if opt.Dtstart.IsZero() {
		return Rule{}, errors.New("missing DTSTART")
	}
	rule.Anchor = LocalOf(opt.Dtstart)

	rule.Interval = opt.Interval
	if rule.Interval < 1 {
		rule.Interval = 1
	}

	switch {
	case opt.Count > 0:
		rule.Bound = CountBound(opt.Count)
	case !opt.Until.IsZero():
		rule.Bound = UntilBound(LocalOf(opt.Until))
	default:
		rule.Bound = NoBound()
	}

	if err := applyROptionModifiers(&rule, opt); err != nil {
		return Rule{}, err
	}

	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// applyROptionModifiers maps the BY* parts the rule model can represent and
// rejects any combination that would expand differently once converted.
func applyROptionModifiers(rule *Rule, opt rrule.ROption) error {
	a := rule.Anchor
	switch {
	case len(opt.Byyearday) > 0, len(opt.Byweekno) > 0, len(opt.Byeaster) > 0:
		return errors.New("BYYEARDAY, BYWEEKNO and BYEASTER are not supported")
	case !onlyAnchor(opt.Byhour, a.Hour()),
		!onlyAnchor(opt.Byminute, a.Minute()),
		!onlyAnchor(opt.Bysecond, a.Second()):
		return errors.New("time-of-day parts must match the anchor")
	}

	switch rule.Frequency {
	case Daily:
		if len(opt.Bymonth) > 0 || len(opt.Bymonthday) > 0 || len(opt.Byweekday) > 0 || len(opt.Bysetpos) > 0 {
			return errors.New("daily rules take no BY parts")
		}

	case Weekly:
		if len(opt.Bymonth) > 0 || len(opt.Bymonthday) > 0 || len(opt.Bysetpos) > 0 {
			return errors.New("weekly rules only take BYDAY")
		}
		for _, wd := range opt.Byweekday {
			if wd.N() != 0 {
				return errors.New("weekly BYDAY cannot be positional")
			}
			rule.ByWeekday = append(rule.ByWeekday, fromRRuleDay(wd.Day()))
		}

	case Monthly:
		if len(opt.Bymonth) > 0 {
			return errors.New("monthly rules cannot take BYMONTH")
		}
		if len(opt.Bymonthday) > 0 {
			if len(opt.Byweekday) > 0 || len(opt.Bysetpos) > 0 {
				return errors.New("BYMONTHDAY cannot be combined with BYDAY or BYSETPOS")
			}
			if !onlyAnchor(opt.Bymonthday, a.Day()) {
				return errors.New("BYMONTHDAY must be the anchor day")
			}
			rule.MonthlyMode = ByMonthDay
			return nil
		}
		if len(opt.Byweekday) == 0 {
			if len(opt.Bysetpos) > 0 {
				return errors.New("BYSETPOS requires BYDAY")
			}
			return nil
		}
		if len(opt.Byweekday) > 1 || len(opt.Bysetpos) > 1 {
			return errors.New("monthly rules take a single BYDAY and BYSETPOS")
		}
		wd := opt.Byweekday[0]
		if fromRRuleDay(wd.Day()) != a.Weekday() {
			return errors.New("BYDAY does not match the anchor weekday")
		}
		pos := wd.N()
		if len(opt.Bysetpos) > 0 {
			if pos != 0 {
				return errors.New("positional BYDAY cannot be combined with BYSETPOS")
			}
			pos = opt.Bysetpos[0]
		}
		if pos == 0 {
			pos = PositionOf(a)
		}
		p, err := normalizePosition(pos)
		if err != nil {
			return err
		}
		rule.MonthlyMode = ByWeekdayPosition
		rule.Position = p

	case Yearly:
		if len(opt.Byweekday) > 0 || len(opt.Bysetpos) > 0 {
			return errors.New("yearly rules cannot take BYDAY or BYSETPOS")
		}
		if !onlyAnchor(opt.Bymonth, int(a.Month())) || !onlyAnchor(opt.Bymonthday, a.Day()) {
			return errors.New("BYMONTH and BYMONTHDAY must match the anchor")
		}
	}
	return nil
}

// onlyAnchor reports whether values is empty or holds exactly want
func onlyAnchor(values []int, want int) bool {
	return len(values) == 0 || len(values) == 1 && values[0] == want
}

// rrule-go numbers weekdays from Monday (0) to Sunday (6)
func fromRRuleDay(d int) time.Weekday {
	return time.Weekday((d + 1) % 7)
}
