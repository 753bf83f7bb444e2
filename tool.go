// Command jshrink inspects the horizontal class-merging phase: it loads a
// textual class-table description, runs the merging pipeline over it, and
// reports what the pipeline decided.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jshrink/jshrink/jvm"
	"github.com/jshrink/jshrink/shrinker"
)

var (
	verbose          bool
	maxGroupSize     int
	maxSyntheticArgs int
	noMergeCtors     bool
	workers          int

	rootCmd = &cobra.Command{
		Use:   "jshrink",
		Short: "Inspect horizontal class merging over a class-table description",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}

	groupsCmd = &cobra.Command{
		Use:   "groups <program file>",
		Short: "Run the merging pipeline and report the committed merge groups",
		Args:  cobra.ExactArgs(1),
		RunE:  runGroups,
	}

	graphCmd = &cobra.Command{
		Use:   "graph <program file>",
		Short: "Render the class hierarchy as a Mermaid diagram",
		Args:  cobra.ExactArgs(1),
		RunE:  runGraph,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print merge decisions as they are made")
	groupsCmd.Flags().IntVar(&maxGroupSize, "max-group-size", 30, "largest number of classes merged into one target")
	groupsCmd.Flags().IntVar(&maxSyntheticArgs, "max-synthetic-args", 3, "largest number of marker parameters appended to a constructor")
	groupsCmd.Flags().BoolVar(&noMergeCtors, "no-merge-constructors", false, "split groups instead of synthesizing dispatch constructors")
	groupsCmd.Flags().IntVar(&workers, "workers", 0, "merge concurrency, 0 means one worker per CPU")
	rootCmd.AddCommand(groupsCmd, graphCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runGroups(cmd *cobra.Command, args []string) error {
	program, err := loadProgram(args[0])
	if err != nil {
		return err
	}
	appInfo := jvm.NewAppInfo()
	for _, c := range program.Classes() {
		appInfo.LiveTypes = append(appInfo.LiveTypes, c.Type)
	}

	opts := shrinker.DefaultOptions()
	opts.MaxGroupSize = maxGroupSize
	opts.MaxSyntheticArgs = maxSyntheticArgs
	opts.MergeConstructors = !noMergeCtors
	opts.Workers = workers

	result, err := shrinker.NewHorizontalClassMerger(opts).Run(cmd.Context(), program, appInfo)
	if err != nil {
		return err
	}
	if result.MergedClasses.Len() == 0 {
		fmt.Println("no classes merged")
		return nil
	}

	byTarget := map[jvm.TypeRef][]jvm.TypeRef{}
	var targets []jvm.TypeRef
	for _, source := range result.MergedClasses.Sources() {
		target := result.MergedClasses.TargetFor(source)
		if _, seen := byTarget[target]; !seen {
			targets = append(targets, target)
		}
		byTarget[target] = append(byTarget[target], source)
	}
	for _, target := range targets {
		names := make([]string, 0, len(byTarget[target]))
		for _, source := range byTarget[target] {
			names = append(names, source.BinaryName())
		}
		fmt.Printf("%s <- %s\n", target.BinaryName(), strings.Join(names, ", "))
	}
	return nil
}

func runGraph(cmd *cobra.Command, args []string) error {
	program, err := loadProgram(args[0])
	if err != nil {
		return err
	}
	mermaid, err := shrinker.HierarchyMermaid(program)
	if err != nil {
		return err
	}
	fmt.Println(mermaid)
	return nil
}

// loadProgram parses a class-table description. The format is line based:
//
//	class com/example/A extends com/example/Base implements com/example/I
//	  field public static count I
//	  method public <init> ()V
//	  method public native run ()V
//	interface com/example/I
//	  method public abstract run ()V
//
// Member lines belong to the most recent class line. Blank lines and lines
// starting with `#` are ignored.
func loadProgram(path string) (*jvm.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	program := jvm.NewProgram()
	var current *jvm.Class

	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		var err error
		switch fields[0] {
		case "class", "interface":
			current, err = parseClassLine(fields)
			if err == nil {
				_, err = program.Add(current)
			}
		case "field", "method":
			if current == nil {
				err = fmt.Errorf("member before any class line")
			} else {
				err = parseMemberLine(current, fields)
			}
		default:
			err = fmt.Errorf("unknown directive %q", fields[0])
		}
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineno, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return program, nil
}

func parseClassLine(fields []string) (*jvm.Class, error) {
	if len(fields) < 2 {
		return nil, fmt.Errorf("%s line needs a class name", fields[0])
	}
	c := &jvm.Class{
		Flags:      jvm.AccPublic,
		Type:       jvm.ClassType(fields[1]),
		Superclass: jvm.Object,
	}
	if fields[0] == "interface" {
		c.Flags |= jvm.AccInterface | jvm.AccAbstract
	}
	rest := fields[2:]
	for len(rest) > 0 {
		switch rest[0] {
		case "extends":
			if len(rest) < 2 {
				return nil, fmt.Errorf("extends needs a class name")
			}
			c.Superclass = jvm.ClassType(rest[1])
			rest = rest[2:]
		case "implements":
			for _, name := range rest[1:] {
				c.Interfaces = append(c.Interfaces, jvm.ClassType(name))
			}
			rest = nil
		case "abstract":
			c.Flags |= jvm.AccAbstract
			rest = rest[1:]
		default:
			return nil, fmt.Errorf("unknown class clause %q", rest[0])
		}
	}
	return c, nil
}

var memberFlags = map[string]jvm.AccessFlags{
	"public":       jvm.AccPublic,
	"private":      jvm.AccPrivate,
	"protected":    jvm.AccProtected,
	"static":       jvm.AccStatic,
	"final":        jvm.AccFinal,
	"synchronized": jvm.AccSynchronized,
	"native":       jvm.AccNative,
	"abstract":     jvm.AccAbstract,
}

func parseMemberLine(c *jvm.Class, fields []string) error {
	kind := fields[0]
	rest := fields[1:]
	var flags jvm.AccessFlags
	for len(rest) > 0 {
		f, ok := memberFlags[rest[0]]
		if !ok {
			break
		}
		flags |= f
		rest = rest[1:]
	}
	if len(rest) != 2 {
		return fmt.Errorf("%s line needs a name and a descriptor", kind)
	}
	name, desc := rest[0], rest[1]

	if kind == "field" {
		c.Fields = append(c.Fields, &jvm.Field{Flags: flags, Name: name, Type: jvm.TypeRef{Descriptor: desc}})
		return nil
	}

	proto, err := parseProto(desc)
	if err != nil {
		return err
	}
	m := &jvm.Method{Flags: flags, Name: name, Proto: proto}
	if !flags.IsAbstract() && !flags.IsNative() {
		m.Code = &jvm.Code{Instrs: []jvm.Instruction{{Op: jvm.OpReturn}}}
	}
	c.Methods = append(c.Methods, m)
	return nil
}

func parseProto(desc string) (jvm.Proto, error) {
	if len(desc) < 3 || desc[0] != '(' {
		return jvm.Proto{}, fmt.Errorf("malformed method descriptor %q", desc)
	}
	end := strings.IndexByte(desc, ')')
	if end < 0 {
		return jvm.Proto{}, fmt.Errorf("malformed method descriptor %q", desc)
	}
	params, err := parseTypeList(desc[1:end])
	if err != nil {
		return jvm.Proto{}, fmt.Errorf("malformed method descriptor %q: %w", desc, err)
	}
	ret := jvm.Void
	if r := desc[end+1:]; r != "V" {
		ret = jvm.TypeRef{Descriptor: r}
	}
	return jvm.Proto{Params: params, Return: ret}, nil
}

func parseTypeList(s string) ([]jvm.TypeRef, error) {
	var types []jvm.TypeRef
	for len(s) > 0 {
		n, err := typeLen(s)
		if err != nil {
			return nil, err
		}
		types = append(types, jvm.TypeRef{Descriptor: s[:n]})
		s = s[n:]
	}
	return types, nil
}

// typeLen returns the length of the first type descriptor in s.
func typeLen(s string) (int, error) {
	n := 0
	for n < len(s) && s[n] == '[' {
		n++
	}
	if n == len(s) {
		return 0, fmt.Errorf("truncated array type")
	}
	switch s[n] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return n + 1, nil
	case 'L':
		semi := strings.IndexByte(s[n:], ';')
		if semi < 0 {
			return 0, fmt.Errorf("unterminated class type")
		}
		return n + semi + 1, nil
	default:
		return 0, fmt.Errorf("unknown type prefix %q", s[n])
	}
}
