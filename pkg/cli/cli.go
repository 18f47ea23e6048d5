package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"
)

type Value interface {
	String() string
	Set(string) error
	Get() any
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }
func (v *stringValue) Get() any           { return *v.p }

type boolValue struct{ p *bool }

// Set accepts an empty string as "true" so that a bare -x switches it on.
func (v *boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = val
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }
func (v *boolValue) Get() any       { return *v.p }

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v.p, ", ") }
func (v *listValue) Get() any           { return *v.p }

type Flag struct {
	Name         string
	Shorthand    string
	Usage        string
	Value        Value
	DefValue     string
	ExpectedType string
}

type FlagGroup struct {
	Name                 string
	Description          string
	Flags                []FlagGroupEntry
	GroupType            string
	AvailableFlagsHeader string
}

// FlagGroupEntry is one -<Prefix><Name> / -<Prefix>no-<Name> switch pair.
// Default is only shown in the help page.
type FlagGroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Default  bool
	Enabled  *bool
	Disabled *bool
}

type FlagSet struct {
	name          string
	flags         map[string]*Flag
	shorthands    map[string]*Flag
	specialPrefix map[string]*Flag
	args          []string
	flagGroups    []FlagGroup
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:          name,
		flags:         make(map[string]*Flag),
		shorthands:    make(map[string]*Flag),
		specialPrefix: make(map[string]*Flag),
	}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, expectedType string) {
	*p = value
	f.Var(&stringValue{p}, name, shorthand, usage, value, expectedType)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

func (f *FlagSet) List(p *[]string, name, shorthand string, value []string, usage, expectedType string) {
	*p = value
	f.Var(&listValue{p}, name, shorthand, usage, fmt.Sprintf("%v", value), expectedType)
}

// Special collects every -<prefix>xxx argument that is not a defined flag.
func (f *FlagSet) Special(p *[]string, prefix, usage, expectedType string) {
	*p = []string{}
	f.Var(&listValue{p}, prefix, "", usage, "", expectedType)
	f.specialPrefix[prefix] = f.flags[prefix]
}

func (f *FlagSet) AddFlagGroup(name, description, groupType, availableFlagsHeader string, entries []FlagGroupEntry) {
	for i := range entries {
		e := &entries[i]
		if e.Enabled != nil {
			f.Bool(e.Enabled, e.Prefix+e.Name, "", *e.Enabled, e.Usage)
		}
		if e.Disabled != nil {
			f.Bool(e.Disabled, e.Prefix+"no-"+e.Name, "", *e.Disabled, "Disable '"+e.Name+"'")
		}
	}
	f.flagGroups = append(f.flagGroups, FlagGroup{
		Name:                 name,
		Description:          description,
		Flags:                entries,
		GroupType:            groupType,
		AvailableFlagsHeader: availableFlagsHeader,
	})
}

func (f *FlagSet) Var(value Value, name, shorthand, usage, defValue, expectedType string) {
	if name == "" {
		panic("flag name cannot be empty")
	}
	if _, ok := f.flags[name]; ok {
		panic(fmt.Sprintf("flag redefined: %s", name))
	}
	flag := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value, DefValue: defValue, ExpectedType: expectedType}
	f.flags[name] = flag
	if shorthand != "" {
		if _, ok := f.shorthands[shorthand]; ok {
			panic(fmt.Sprintf("shorthand flag redefined: %s", shorthand))
		}
		f.shorthands[shorthand] = flag
	}
}

// Parse accepts --name[=v], -name[=v], -s v, -sv and -<prefix>xxx. A lone
// "-" is positional (stdin); "--" ends flag parsing.
func (f *FlagSet) Parse(arguments []string) error {
	f.args = []string{}
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		switch {
		case len(arg) < 2 || arg[0] != '-':
			f.args = append(f.args, arg)
		case arg == "--":
			f.args = append(f.args, arguments[i+1:]...)
			return nil
		case strings.HasPrefix(arg, "--"):
			if err := f.parseNamed(arg[2:], "--", arguments, &i); err != nil {
				return err
			}
		default:
			name, _, _ := strings.Cut(arg[1:], "=")
			if _, ok := f.flags[name]; ok {
				if err := f.parseNamed(arg[1:], "-", arguments, &i); err != nil {
					return err
				}
				continue
			}
			if err := f.parseShortFlag(arg, arguments, &i); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *FlagSet) parseNamed(body, dashes string, arguments []string, i *int) error {
	name, value, hasValue := strings.Cut(body, "=")
	if name == "" {
		return fmt.Errorf("empty flag name")
	}
	flag, ok := f.flags[name]
	if !ok {
		return fmt.Errorf("unknown flag: %s%s", dashes, name)
	}
	if hasValue {
		return flag.Value.Set(value)
	}
	if _, isBool := flag.Value.(*boolValue); isBool {
		return flag.Value.Set("")
	}
	if *i+1 >= len(arguments) {
		return fmt.Errorf("flag needs an argument: %s%s", dashes, name)
	}
	*i++
	return flag.Value.Set(arguments[*i])
}

func (f *FlagSet) parseShortFlag(arg string, arguments []string, i *int) error {
	for prefix, flag := range f.specialPrefix {
		if strings.HasPrefix(arg, "-"+prefix) && len(arg) > len(prefix)+1 {
			return flag.Value.Set(arg[len(prefix)+1:])
		}
	}

	shorthand := arg[1:2]
	flag, ok := f.shorthands[shorthand]
	if !ok {
		return fmt.Errorf("unknown shorthand flag: -%s", shorthand)
	}
	if _, isBool := flag.Value.(*boolValue); isBool {
		return flag.Value.Set("")
	}
	value := arg[2:]
	if value == "" {
		if *i+1 >= len(arguments) {
			return fmt.Errorf("flag needs an argument: -%s", shorthand)
		}
		*i++
		value = arguments[*i]
	}
	return flag.Value.Set(value)
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	Since       int
	FlagSet     *FlagSet
	Action      func(args []string) error
	Stdout      io.Writer
	Stderr      io.Writer
}

func NewApp(name string) *App {
	return &App{
		Name:    name,
		FlagSet: NewFlagSet(name),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(a.Stderr, err)
		fmt.Fprint(a.Stderr, a.UsagePage(terminalWidth()))
		return err
	}
	if help {
		fmt.Fprint(a.Stdout, a.HelpPage(terminalWidth()))
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

// UsagePage is the short form printed after a flag error.
func (a *App) UsagePage(termWidth int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Usage: %s %s\n", a.Name, a.Synopsis)

	optionFlags := a.optionFlags()
	if len(optionFlags) > 0 {
		leftWidth, usageWidth := 0, 0
		for _, flag := range optionFlags {
			leftWidth = max(leftWidth, len(formatFlagString(flag)))
			usageWidth = max(usageWidth, len(flag.Usage))
		}
		fmt.Fprintf(&sb, "\n%sOptions\n", indent(1))
		for _, flag := range optionFlags {
			formatFlagLine(&sb, flag, termWidth, leftWidth, usageWidth)
		}
	}

	fmt.Fprintf(&sb, "\nRun '%s --help' for all available options and flags.\n", a.Name)
	return sb.String()
}

func (a *App) HelpPage(termWidth int) string {
	var sb strings.Builder

	leftWidth, usageWidth := 0, 0
	optionFlags := a.optionFlags()
	for _, flag := range optionFlags {
		leftWidth = max(leftWidth, len(formatFlagString(flag)))
		usageWidth = max(usageWidth, len(flag.Usage))
	}
	for _, group := range a.FlagSet.flagGroups {
		if len(group.Flags) == 0 {
			continue
		}
		leftWidth = max(leftWidth, len(groupSwitch(group, true)))
		for _, entry := range group.Flags {
			leftWidth = max(leftWidth, len(entry.Name))
			usageWidth = max(usageWidth, len(entry.Usage))
		}
	}

	sb.WriteString("\n")
	if len(a.Authors) > 0 {
		years := strconv.Itoa(time.Now().Year())
		if a.Since != 0 && a.Since < time.Now().Year() {
			years = fmt.Sprintf("%d-%s", a.Since, years)
		}
		fmt.Fprintf(&sb, "%sCopyright (c) %s: %s and contributors\n", indent(1), years, strings.Join(a.Authors, ", "))
	}
	if a.Repository != "" {
		fmt.Fprintf(&sb, "%sFor more details refer to %s\n", indent(1), a.Repository)
	}
	if a.Synopsis != "" {
		fmt.Fprintf(&sb, "\n%sSynopsis\n", indent(1))
		fmt.Fprintf(&sb, "%s%s %s\n", indent(2), a.Name, a.Synopsis)
	}
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n%sDescription\n", indent(1))
		for _, line := range wrapText(a.Description, termWidth-len(indent(2))) {
			fmt.Fprintf(&sb, "%s%s\n", indent(2), line)
		}
	}
	if len(optionFlags) > 0 {
		fmt.Fprintf(&sb, "\n%sOptions\n", indent(1))
		for _, flag := range optionFlags {
			formatFlagLine(&sb, flag, termWidth, leftWidth, usageWidth)
		}
	}

	groups := make([]FlagGroup, len(a.FlagSet.flagGroups))
	copy(groups, a.FlagSet.flagGroups)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	for _, group := range groups {
		formatFlagGroup(&sb, group, termWidth, leftWidth, usageWidth)
	}
	return sb.String()
}

// optionFlags returns the plain flags sorted by name, without group switches
// and special prefixes.
func (a *App) optionFlags() []*Flag {
	var flags []*Flag
	for _, flag := range a.FlagSet.flags {
		if _, isSpecial := a.FlagSet.specialPrefix[flag.Name]; isSpecial {
			continue
		}
		if a.isGroupFlag(flag.Name) {
			continue
		}
		flags = append(flags, flag)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })
	return flags
}

func (a *App) isGroupFlag(flagName string) bool {
	for _, group := range a.FlagSet.flagGroups {
		for _, entry := range group.Flags {
			if flagName == entry.Prefix+entry.Name || flagName == entry.Prefix+"no-"+entry.Name {
				return true
			}
		}
	}
	return false
}

func indent(level int) string { return strings.Repeat(" ", 4*level) }

func formatFlagString(flag *Flag) string {
	var sb strings.Builder
	_, isBool := flag.Value.(*boolValue)

	if flag.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s", flag.Shorthand)
		if !isBool {
			fmt.Fprintf(&sb, " <%s>", flag.ExpectedType)
		}
		fmt.Fprintf(&sb, ", --%s", flag.Name)
		if !isBool {
			fmt.Fprintf(&sb, " <%s>", flag.ExpectedType)
		}
		return sb.String()
	}
	fmt.Fprintf(&sb, "--%s", flag.Name)
	if !isBool && flag.ExpectedType != "" {
		fmt.Fprintf(&sb, "=%s", flag.ExpectedType)
	}
	return sb.String()
}

func groupSwitch(group FlagGroup, negated bool) string {
	groupType := group.GroupType
	if groupType == "" {
		groupType = "flag"
	}
	if negated {
		return fmt.Sprintf("-%sno-<%s>", group.Flags[0].Prefix, groupType)
	}
	return fmt.Sprintf("-%s<%s>", group.Flags[0].Prefix, groupType)
}

// formatEntry prints "left usage |right|", wrapping usage under itself when
// the terminal is too narrow.
func formatEntry(sb *strings.Builder, termWidth int, left, usage, right string, leftWidth, usageWidth int) {
	fixed := len(indent(2)) + leftWidth + 1
	firstWidth := termWidth - fixed - 2 - len(right)
	if firstWidth < 10 {
		firstWidth = 10
	}
	lines := wrapText(usage, firstWidth)
	first := ""
	if len(lines) > 0 {
		first = lines[0]
	}

	if right != "" {
		fmt.Fprintf(sb, "%s%-*s %-*s  %s\n", indent(2), leftWidth, left, min(usageWidth, firstWidth), first, right)
	} else {
		fmt.Fprintf(sb, "%s%-*s %s\n", indent(2), leftWidth, left, first)
	}
	for _, line := range lines[min(1, len(lines)):] {
		fmt.Fprintf(sb, "%s%s%s\n", indent(2), strings.Repeat(" ", leftWidth+1), line)
	}
}

func formatFlagLine(sb *strings.Builder, flag *Flag, termWidth, leftWidth, usageWidth int) {
	right := ""
	if flag.DefValue != "" && flag.DefValue != "false" && flag.DefValue != "[]" {
		right = fmt.Sprintf("|%s|", flag.DefValue)
	}
	formatEntry(sb, termWidth, formatFlagString(flag), flag.Usage, right, leftWidth, usageWidth)
}

func formatFlagGroup(sb *strings.Builder, group FlagGroup, termWidth, leftWidth, usageWidth int) {
	if len(group.Flags) == 0 {
		return
	}
	groupType := group.GroupType
	if groupType == "" {
		groupType = "flag"
	}

	fmt.Fprintf(sb, "\n%s%s\n", indent(1), group.Name)
	fmt.Fprintf(sb, "%s%-*s Enable a specific %s\n", indent(2), leftWidth, groupSwitch(group, false), groupType)
	fmt.Fprintf(sb, "%s%-*s Disable a specific %s\n", indent(2), leftWidth, groupSwitch(group, true), groupType)
	if group.AvailableFlagsHeader != "" {
		fmt.Fprintf(sb, "%s%s\n", indent(1), group.AvailableFlagsHeader)
	}

	entries := make([]FlagGroupEntry, len(group.Flags))
	copy(entries, group.Flags)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	for _, entry := range entries {
		right := "|-|"
		if entry.Default {
			right = "|x|"
		}
		formatEntry(sb, termWidth, entry.Name, entry.Usage, right, leftWidth, usageWidth)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	if width < 20 {
		return 20
	}
	return width
}

func wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{text}
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}
	}

	var lines []string
	var line strings.Builder
	for _, word := range words {
		if line.Len() > 0 && line.Len()+len(word)+1 > maxWidth {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
