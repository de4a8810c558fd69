package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/ancbuild/anc/internal/appbuild"
	"github.com/ancbuild/anc/internal/fetch"
	"github.com/ancbuild/anc/internal/modulebuild"
	"github.com/ancbuild/anc/internal/resolve"
	"github.com/ancbuild/anc/internal/runtimeprop"
	"github.com/ancbuild/anc/internal/scriptbuild"
)

var (
	// Version info - set by ldflags during build
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"

	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

var defaultRegistries = []string{"https://registry.anc.dev/index.json"}

func main() {
	var (
		versionFlag  = flag.Bool("version", false, "Print version information")
		helpFlag     = flag.Bool("help", false, "Show help")
		testsFlag    = flag.Bool("tests", false, "Include tests/ sources in the build")
		editionFlag  = flag.String("edition", "2025", "Runtime edition to resolve Runtime-kind dependencies against")
		userCfgFlag  = flag.String("config", "", "Path to a user registry configuration file")
	)

	flag.Parse()

	if *versionFlag {
		printVersion()
		return
	}

	if *helpFlag || flag.NArg() == 0 {
		printHelp()
		return
	}

	command := flag.Arg(0)

	switch command {
	case "build":
		path := "."
		if flag.NArg() >= 2 {
			path = flag.Arg(1)
		}
		buildApplication(path, *testsFlag, *editionFlag, *userCfgFlag)

	case "check":
		path := "."
		if flag.NArg() >= 2 {
			path = flag.Arg(1)
		}
		dryResolve(path, *editionFlag, *userCfgFlag)

	case "run-script":
		if flag.NArg() < 2 {
			fmt.Fprintf(os.Stderr, "%s: missing file argument\n", red("Error"))
			fmt.Println("Usage: ancbuild run-script <file.anca>")
			os.Exit(1)
		}
		buildScript(flag.Arg(1), *editionFlag, *userCfgFlag)

	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command '%s'\n", red("Error"), command)
		printHelp()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("ancbuild %s\n", bold(Version))
	if Commit != "unknown" {
		fmt.Printf("Commit: %s\n", Commit)
	}
	if BuildTime != "unknown" {
		fmt.Printf("Built:  %s\n", BuildTime)
	}
}

func printHelp() {
	fmt.Println(bold("ancbuild - module build driver"))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ancbuild <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Printf("  %s [path]    Build an application image from a module directory (default: .)\n", cyan("build"))
	fmt.Printf("  %s [path]    Resolve and build dependencies without writing an application image\n", cyan("check"))
	fmt.Printf("  %s <file>   Build and serialize a single script file\n", cyan("run-script"))
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --version        Print version information")
	fmt.Println("  --help           Show this help message")
	fmt.Println("  --tests          Include tests/ sources in the build")
	fmt.Println("  --edition <ed>   Runtime edition to resolve against (default 2025)")
	fmt.Println("  --config <path>  User registry configuration file")
}

func newResolver(edition, userConfigPath string) (*resolve.Resolver, error) {
	exe, err := os.Executable()
	if err != nil {
		exe = filepath.Join(".", "ancbuild")
	}
	props, err := runtimeprop.Discover(exe, edition, defaultRegistries, userConfigPath)
	if err != nil {
		return nil, err
	}
	return &resolve.Resolver{
		Builder:  modulebuild.NewDefaultBuilder(),
		Fetcher:  fetch.GitFetcher{},
		Registry: fetch.HTTPRegistryClient{},
		Props:    props,
	}, nil
}

func buildApplication(path string, includeTests bool, edition, userConfigPath string) {
	resolver, err := newResolver(edition, userConfigPath)
	if err != nil {
		fail(err)
	}
	builder := appbuild.NewDefaultBuilder(resolver)
	_, idx, outPath, err := builder.Build(context.Background(), path, includeTests)
	if err != nil {
		fail(err)
	}
	fmt.Printf("%s %s (%d modules)\n", green("built"), bold(outPath), len(idx.Modules))
}

func dryResolve(path, edition, userConfigPath string) {
	resolver, err := newResolver(edition, userConfigPath)
	if err != nil {
		fail(err)
	}
	builder := appbuild.NewDefaultBuilder(resolver)
	res, err := builder.DryResolve(context.Background(), path)
	if err != nil {
		fail(err)
	}
	fmt.Printf("%s %d dependencies resolve cleanly\n", green("ok"), len(res.Entries))
	for _, e := range res.Entries {
		fmt.Printf("  %s %s %s\n", cyan("-"), e.Name, yellow(e.Version))
	}
}

func buildScript(file, edition, userConfigPath string) {
	resolver, err := newResolver(edition, userConfigPath)
	if err != nil {
		fail(err)
	}
	builder := scriptbuild.NewDefaultBuilder(resolver, edition)
	entry, _, buf, err := builder.Build(context.Background(), file)
	if err != nil {
		fail(err)
	}
	fmt.Printf("%s %s@%s (%d bytes)\n", green("built"), bold(entry.Name), entry.Version, len(buf))
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
	os.Exit(1)
}
