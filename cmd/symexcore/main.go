// Command symexcore loads an ARMv6-M ELF, explores it to completion,
// and prints one line per terminated path plus the worst observed
// cycle count.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	_ "symexcore/arch/armv6m" // registers the armv6m architecture factory

	"symexcore/config"
	"symexcore/project"
	"symexcore/smt"
	"symexcore/vm"
)

var (
	entrySymbol = flag.String("entry", "main", "symbol to start exploration from")
	exitSymbol  = flag.String("exit", "_exit", "symbol that marks successful completion")
	configPath  = flag.String("config", "", "path to a RunConfig YAML file")
)

func init() {
	flag.Parse()
}

func main() {
	args := os.Args[len(os.Args)-flag.NArg():]
	if len(args) != 1 {
		fmt.Println("Usage: symexcore [-entry sym] [-exit sym] [-config run.yaml] <elf file>")
		return
	}

	proj, err := loadProject(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Println(err)
			return
		}
	}

	exitPC, err := proj.SymbolAddress(*exitSymbol)
	if err != nil {
		fmt.Printf("resolving -exit symbol %q: %v\n", *exitSymbol, err)
		return
	}
	proj.BindPCHook(*exitSymbol, project.PCHook{Kind: project.EndSuccess})
	if err := cfg.Apply(proj); err != nil {
		fmt.Println(err)
		return
	}

	// Fall back to the reset handler when the named entry symbol isn't
	// present: firmware images commonly have no "main" in their symbol
	// table (stripped, or inlined into the reset handler).
	entryPC, err := proj.SymbolAddress(*entrySymbol)
	if err != nil {
		entryPC = proj.ResetPC
	}

	run, err := runExploration(proj, cfg, entryPC, exitPC)
	if err != nil {
		fmt.Println(err)
		return
	}

	for _, rec := range run.Paths {
		fmt.Printf("%s: %s\n", rec.PathID, rec.Result)
	}
	fmt.Printf("worst case: %d cycles across %d paths\n", run.WorstCase, len(run.Paths))
}

func loadProject(path string) (*project.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	proj, err := project.FromELF(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return proj, nil
}

// runExploration builds the symbolic machinery (Context, Solver, an
// initial GAState at entryPC) and drives the VM to completion. Split
// out from main so a panic that escapes the VM is recovered and returned
// as this function's error instead of crashing the process; the run
// ends there and no RunResult is reported.
func runExploration(proj *project.Project, cfg config.RunConfig, entryPC, exitPC uint64) (result vm.RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("exploration panicked: %v", r)
		}
	}()

	ctx := smt.NewContext()
	solver := smt.NewSolver(ctx)
	mem := proj.NewMemory(ctx, 1<<24)

	machine := vm.New(proj, ctx, solver, exitPC, cfg.Limits.ToLimits())
	machine.Log = slog.Default().With("component", "symexcore")
	initial := machine.NewInitialState(mem, entryPC)

	return machine.Run(initial), nil
}
