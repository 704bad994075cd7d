package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"skinjector/internal/app"
	"skinjector/internal/failure"
	"skinjector/internal/injector"
)

type ExitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }
func (e *exitError) ExitCode() int { return e.code }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status. Classified failures get
// stable codes so scripts can tell a missing archive from a tool failure.
func exitCode(err error) int {
	var ex ExitCoder
	if errors.As(err, &ex) {
		return ex.ExitCode()
	}
	switch failure.KindOf(err) {
	case failure.ErrInvalidGamePath, failure.ErrConfig:
		return 3
	case failure.ErrMissingArchive, failure.ErrArchive:
		return 4
	case failure.ErrOverlay, failure.ErrProcess:
		return 5
	case failure.ErrBusy:
		return 6
	case failure.ErrCritical:
		return 7
	case failure.ErrAborted:
		return 130
	}
	return 1
}

func newRootCmd() *cobra.Command {
	var configPath string
	var jsonOutput bool

	var cmd *cobra.Command
	newSvc := func() (*app.Service, error) {
		svc, err := app.New(app.Options{ConfigPath: configPath})
		if err != nil {
			return nil, err
		}
		if !cmd.PersistentFlags().Changed("json") && svc.Config.Logging.Format == "json" {
			jsonOutput = true
		}
		return svc, nil
	}

	cmd = &cobra.Command{
		Use:           "skinjector",
		Short:         "Apply custom skin archives to the game through the overlay toolchain",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")

	cmd.AddCommand(newInjectCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newCleanupCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newStopCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newStatusCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newIndexCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newImportCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newCustomCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newConfigCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newDoctorCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newVersionCmd(newSvc, &jsonOutput))

	return cmd
}

func newInjectCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var file string
	var sourceRoot string
	cmd := &cobra.Command{
		Use:     "inject [champion:skin[:chroma][=archive] ...]",
		Aliases: []string{"apply"},
		Short:   "Build and launch an overlay for the selected skins",
		Long: "Each argument selects one skin by numeric ids, optionally with a chroma id and an\n" +
			"archive hint (path relative to the source root, or absolute). No selections resets\n" +
			"the overlay to no skins.",
		RunE: func(cmd *cobra.Command, args []string) error {
			selections, err := parseSelections(args)
			if err != nil {
				return err
			}
			if file != "" {
				fromFile, err := loadSelectionFile(file)
				if err != nil {
					return err
				}
				selections = append(selections, fromFile...)
			}
			svc, err := newSvc()
			if err != nil {
				return err
			}
			if !*jsonOutput {
				svc.OnEvent(printEvent)
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			report, err := svc.Inject(ctx, selections, sourceRoot)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return print(true, report, "")
			}
			for _, m := range report.Mods {
				fmt.Printf("- %s (%s) <- %s\n", m.Name, m.Shape, m.Archive)
			}
			fmt.Printf("overlay running (pid %d)\n", report.PID)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "selections file (.json or .toml)")
	cmd.Flags().StringVar(&sourceRoot, "source", "", "archive source root (defaults to config)")
	return cmd
}

func printEvent(e injector.Event) {
	switch e.Kind {
	case injector.EventProgress:
		fmt.Printf("[%d/%d] %s\n", e.Index, e.Total, e.Message)
	case injector.EventInjectionStatus:
		if e.Status == injector.StatusInjecting {
			fmt.Printf("injecting %d selection(s)\n", e.Total)
		}
	}
}

func newCleanupCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "cleanup",
		Aliases: []string{"reset"},
		Short:   "Stop the overlay tool and remove the built overlay",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			if err := svc.Cleanup(context.Background()); err != nil {
				return err
			}
			return print(*jsonOutput, map[string]bool{"cleaned": true}, "overlay removed")
		},
	}
}

func newStopCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "stop",
		Aliases: []string{"kill"},
		Short:   "Terminate the running overlay process",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			if err := svc.Stop(context.Background()); err != nil {
				return err
			}
			return print(*jsonOutput, map[string]bool{"stopped": true}, "overlay process stopped")
		},
	}
}

func newStatusCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var recent int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last injection session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			st, err := svc.Status(recent)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return print(true, st, "")
			}
			fmt.Printf("state: %s\n", st.State)
			if st.Session.PID > 0 {
				fmt.Printf("pid: %d\n", st.Session.PID)
			}
			if st.ToolFound {
				fmt.Printf("tool: %s\n", st.ToolPath)
			} else {
				fmt.Println("tool: not found")
			}
			for _, m := range st.Session.Mods {
				version := m.Version
				if version == "" {
					version = "-"
				}
				fmt.Printf("- %s %s (%s)\n", m.Name, version, m.Shape)
			}
			if st.Session.LastError != "" {
				fmt.Printf("last error: %s\n", st.Session.LastError)
			}
			for _, e := range st.Recent {
				fmt.Printf("  %s %s/%s %s %s\n", e.Timestamp, e.Operation, e.Phase, e.Status, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 0, "show the last N audit events")
	return cmd
}

func newIndexCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var rebuild bool
	var list bool
	var sourceRoot string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the archive index and print its counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			report, err := svc.Index(sourceRoot, rebuild)
			if err != nil {
				return err
			}
			if list {
				archives, err := svc.ListArchives(report.SourceRoot)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return print(true, archives, "")
				}
				for _, a := range archives {
					fmt.Printf("%s\tchampion=%d skin=%d chroma=%d\n", a.Path, a.ChampionID, a.SkinID, a.ChromaID)
				}
				return nil
			}
			return print(*jsonOutput, report, fmt.Sprintf("%s: %d champion(s), %d archive(s), %d key(s)",
				report.SourceRoot, report.Stats.Champions, report.Stats.Archives, report.Stats.Keys))
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "rebuild even when the index is fresh")
	cmd.Flags().BoolVar(&list, "list", false, "list every indexed archive with its ids")
	cmd.Flags().StringVar(&sourceRoot, "source", "", "archive source root (defaults to config)")
	return cmd
}

func newImportCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import <champion> <archive>",
		Short: "Copy an archive into the custom skins library",
		Long:  "The champion is a numeric id or the name of a champion directory in the source root.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			champion, err := svc.ResolveChampion(args[0])
			if err != nil {
				return err
			}
			rec, err := svc.Import(champion, args[1], name)
			if err != nil {
				return err
			}
			return print(*jsonOutput, rec, fmt.Sprintf("imported %s as %s", rec.Name, rec.ID))
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the file name)")
	return cmd
}

func newCustomCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	customCmd := &cobra.Command{Use: "custom", Short: "Manage imported custom skins"}

	var champion uint32
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List imported skins",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			skins, err := svc.CustomList(champion)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return print(true, skins, "")
			}
			if len(skins) == 0 {
				fmt.Println("no custom skins")
				return nil
			}
			for _, s := range skins {
				fmt.Printf("- %s %s [%s] %s\n", s.ID, s.Name, s.ChampionName, s.Path)
			}
			return nil
		},
	}
	listCmd.Flags().Uint32Var(&champion, "champion", 0, "only list skins for this champion id")

	deleteCmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an imported skin",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			rec, err := svc.CustomDelete(args[0])
			if err != nil {
				return err
			}
			return print(*jsonOutput, map[string]string{"deleted": rec.ID}, "deleted "+rec.ID)
		},
	}

	customCmd.AddCommand(listCmd, deleteCmd)
	return customCmd
}

func newConfigCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	configCmd := &cobra.Command{Use: "config", Short: "Edit the configuration file"}

	gameCmd := &cobra.Command{
		Use:   "set-game <root>",
		Short: "Set the game installation root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			if err := svc.SetGameRoot(args[0]); err != nil {
				return err
			}
			return print(*jsonOutput, map[string]string{"gameRoot": args[0]}, "game root set to "+args[0])
		},
	}

	searchCmd := &cobra.Command{
		Use:   "add-search-dir <dir>",
		Short: "Add a directory to search for the overlay tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			changed, err := svc.AddSearchDir(args[0])
			if err != nil {
				return err
			}
			msg := "added search dir " + args[0]
			if !changed {
				msg = args[0] + " already configured"
			}
			return print(*jsonOutput, map[string]bool{"changed": changed}, msg)
		},
	}

	var dryRun bool
	detectCmd := &cobra.Command{
		Use:   "detect-game",
		Short: "Find the game installation and set it as the game root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			found, err := svc.DetectGame(!dryRun)
			if err != nil {
				return err
			}
			msg := "game root set to " + found.Root
			if dryRun {
				msg = "found " + found.Root
			}
			return print(*jsonOutput, found, msg+" ("+found.Source+")")
		},
	}
	detectCmd.Flags().BoolVar(&dryRun, "dry-run", false, "only print the detected root")

	configCmd.AddCommand(gameCmd, searchCmd, detectCmd)
	return configCmd
}

func newDoctorCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"diag", "checkup"},
		Short:   "Run diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			report := svc.DoctorRun()
			if *jsonOutput {
				if err := print(true, report, ""); err != nil {
					return err
				}
			} else if report.Healthy && len(report.Findings) == 0 {
				fmt.Println("healthy")
			} else {
				fmt.Println("issues found:")
				for _, f := range report.Findings {
					fmt.Printf("- [%s] %s: %s\n", f.Level, f.Code, f.Message)
				}
			}
			if !report.Healthy {
				return &exitError{code: 2, msg: "doctor found blocking issues"}
			}
			return nil
		},
	}
}

func parseID(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint32(n), nil
}

func print(jsonOutput bool, payload any, message string) error {
	if jsonOutput {
		blob, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(blob))
		return nil
	}
	if message != "" {
		fmt.Println(message)
	}
	return nil
}
