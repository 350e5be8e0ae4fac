package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ct-go/internal/app"
	"ct-go/internal/config"
	"ct-go/internal/ct"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newPrompter(cmd *cobra.Command) *app.TerminalPrompter {
	p := app.NewTerminalPrompter(os.Stdin, os.Stdout, os.Stderr)
	p.AssumeYes, _ = cmd.Flags().GetBool("yes")
	return p
}

func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// withApp builds a CTApp for the command, runs fn and closes the app with
// fn's result, so changes are saved and uploaded exactly once.
func withApp(cmd *cobra.Command, args []string, fn func(a *app.CTApp) error) (err error) {
	cfg, err := readConfig()
	if err != nil {
		return err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")

	a, err := app.NewCTApp(cfg, app.NewOperation(cmd.CommandPath(), args, time.Now()), app.Options{
		Prompter: newPrompter(cmd),
		Verbose:  verbose,
	})
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer func() {
		if cerr := a.Close(err); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

func printRecord(rec *ct.ImageRecord) {
	tags := "-"
	if len(rec.Tags) > 0 {
		tags = strings.Join(rec.Tags, ", ")
	}
	fmt.Printf("%-40s  %s\n", rec.CurrentName, tags)
}

var rootCmd = &cobra.Command{
	Use:          "ct",
	Short:        "Tag images by renaming them",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID:  %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Host ID:    %s\n", cfg.HostID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("State:      %s %s\n", cfg.State.Type, cfg.State.Path)
		fmt.Printf("Extensions: %s\n", strings.Join(cfg.Scan.Extensions, " "))
		fmt.Printf("Read EXIF:  %v\n", cfg.Scan.ReadExif)
		fmt.Printf("Encryption: %s (enabled=%v)\n", cfg.Encryption.Type, cfg.Encryption.Enabled)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:      %s (%s)\n", v.Name, v.Type)
		}
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage snapshot encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the snapshot encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		p := newPrompter(cmd)
		pass, err := p.ReadPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		again, err := p.ReadPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if pass != again {
			return fmt.Errorf("passphrases do not match")
		}

		pub, err := app.SetupKeys(cfg.Encryption, pass)
		if err != nil {
			return fmt.Errorf("creating keys: %w", err)
		}
		if pub != "" {
			fmt.Printf("Public key: %s\n", pub)
		}
		if !cfg.Encryption.Enabled {
			fmt.Println("Set enabled = true under [encryption] to encrypt vault uploads.")
		}
		return nil
	},
}

// open command
var openCmd = &cobra.Command{
	Use:   "open [DIR]",
	Short: "Index the images in a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.CTApp) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			n, err := a.Open(dir)
			if err != nil {
				return err
			}
			fmt.Printf("Indexed %d image(s) in %s\n", n, a.Service().SessionRoot())
			return nil
		})
	},
}

var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Reopen the most recent directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.CTApp) error {
			dir, n, err := a.Resume()
			if err != nil {
				return err
			}
			fmt.Printf("Indexed %d image(s) in %s\n", n, dir)
			return nil
		})
	},
}

var dirsCmd = &cobra.Command{
	Use:   "dirs",
	Short: "List previously opened directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.CTApp) error {
			dirs := a.Service().PreviousDirectories()
			if len(dirs) == 0 {
				fmt.Println("No directories opened yet.")
				return nil
			}
			for i := len(dirs) - 1; i >= 0; i-- {
				fmt.Println(dirs[i])
			}
			return nil
		})
	},
}

// images command
var imagesCmd = &cobra.Command{
	Use:   "images [QUERY]",
	Short: "List or search images in the current directory",
	Long: `List images of the most recently opened directory.

QUERY matches whole words of image names, ignoring case and '@'.
A query written as ^...$ is used as a regular expression.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.CTApp) error {
			if _, _, err := a.Resume(); err != nil {
				return err
			}
			recs := a.Service().SessionRecords()
			if len(args) > 0 {
				var err error
				if recs, err = a.Service().SearchImages(args[0]); err != nil {
					return err
				}
			}
			if len(recs) == 0 {
				fmt.Println("No images found.")
				return nil
			}
			for _, rec := range recs {
				printRecord(rec)
			}
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show IMAGE",
	Short: "Show an image record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.CTApp) error {
			rec, err := a.Image(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Path:      %s\n", rec.Path())
			fmt.Printf("Original:  %s\n", rec.OriginalName)
			fmt.Printf("Tags:      %s\n", strings.Join(rec.Tags, ", "))
			if !rec.TakenAt.IsZero() {
				fmt.Printf("Taken:     %s\n", rec.TakenAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Printf("Revisions: %d\n", len(rec.Revisions))
			for i, tags := range rec.TagHistory {
				fmt.Printf("  %d: [%s]\n", i, strings.Join(tags, ", "))
			}
			return nil
		})
	},
}

// tag command
var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Change the tags of an image",
}

var tagAddCmd = &cobra.Command{
	Use:   "add IMAGE TAG...",
	Short: "Add tags to an image",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.CTApp) error {
			rec, err := a.Image(args[0])
			if err != nil {
				return err
			}
			if err := a.Service().AddTags(rec, args[1:]...); err != nil {
				return err
			}
			printRecord(rec)
			return nil
		})
	},
}

var tagRmCmd = &cobra.Command{
	Use:   "rm IMAGE TAG...",
	Short: "Remove tags from an image",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.CTApp) error {
			rec, err := a.Image(args[0])
			if err != nil {
				return err
			}
			if err := a.Service().RemoveTags(rec, args[1:]...); err != nil {
				return err
			}
			printRecord(rec)
			return nil
		})
	},
}

var tagSetCmd = &cobra.Command{
	Use:   "set IMAGE [TAG...]",
	Short: "Replace the tags of an image",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.CTApp) error {
			rec, err := a.Image(args[0])
			if err != nil {
				return err
			}
			if err := a.Service().CommitRename(rec, args[1:]); err != nil {
				return err
			}
			printRecord(rec)
			return nil
		})
	},
}

// tags command
var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Manage the tag registry",
}

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.CTApp) error {
			printTags(a.Service().Tags())
			return nil
		})
	},
}

var tagsSearchCmd = &cobra.Command{
	Use:   "search PATTERN",
	Short: "List tags whose name matches a regular expression",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.CTApp) error {
			tags, err := a.Service().SearchTags(args[0])
			if err != nil {
				return err
			}
			printTags(tags)
			return nil
		})
	},
}

func printTags(tags []*ct.Tag) {
	if len(tags) == 0 {
		fmt.Println("No tags.")
		return
	}
	for _, t := range tags {
		fmt.Printf("%-30s  %d\n", t.Name, t.ImageCount())
	}
}

var tagsCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Register a new tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.CTApp) error {
			t, err := a.Service().CreateTag(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Created tag %s\n", t.Name)
			return nil
		})
	},
}

var tagsDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a tag and remove it from every image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.CTApp) error {
			if err := a.Service().DeleteTag(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted tag %s\n", args[0])
			return nil
		})
	},
}

// move command
var moveCmd = &cobra.Command{
	Use:   "move IMAGE [DIR]",
	Short: "Move an image to another directory",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.CTApp) error {
			rec, err := a.Image(args[0])
			if err != nil {
				return err
			}

			dest := ""
			if len(args) > 1 {
				dest = args[1]
			}
			if err := a.Move(rec, dest); err != nil {
				return err
			}
			fmt.Printf("Moved to %s\n", rec.Path())
			return nil
		})
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log IMAGE",
	Short: "View the rename history of an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.CTApp) error {
			rec, err := a.Image(args[0])
			if err != nil {
				return err
			}
			entries := a.Service().RevisionLog(rec)
			if len(entries) == 0 {
				fmt.Println("No revisions.")
				return nil
			}
			for i, e := range entries {
				fmt.Printf("%3d  %s  %s -> %s\n", i, e.Timestamp, e.OldName, e.CurrentName)
			}
			return nil
		})
	},
}

var revertCmd = &cobra.Command{
	Use:   "revert IMAGE N",
	Short: "Restore the name an image had before revision N",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("revision must be a number: %w", err)
		}
		return withApp(cmd, args, func(a *app.CTApp) error {
			rec, err := a.Image(args[0])
			if err != nil {
				return err
			}
			if err := a.Service().RevertTo(rec, n); err != nil {
				return err
			}
			printRecord(rec)
			return nil
		})
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View renames across all images",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		return withApp(cmd, args, func(a *app.CTApp) error {
			entries := a.Service().MasterLog()
			if len(entries) == 0 {
				fmt.Println("No renames recorded.")
				return nil
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			for _, e := range entries {
				fmt.Printf("%s  %s -> %s\n", e.Timestamp, e.OldName, e.CurrentName)
			}
			return nil
		})
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload the state snapshot to every vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.CTApp) error {
			n, err := a.Backup()
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}
			fmt.Printf("Snapshot uploaded to %d vault(s)\n", n)
			return nil
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the local state with the snapshot from a vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		vaultName, _ := cmd.Flags().GetString("vault")

		cfg, err := readConfig()
		if err != nil {
			return err
		}
		p := newPrompter(cmd)
		res, err := app.Restore(cfg, vaultName, func() (string, error) {
			return p.ReadPassphrase("Passphrase: ")
		})
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Restored generation %d from %s: %d image(s), %d tag(s)\n", res.Generation, res.Vault, res.Records, res.Tags)
		if res.Backup != "" {
			fmt.Printf("Previous state kept at %s\n", res.Backup)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("yes", "y", false, "Accept every prompt without asking")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log progress to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	keysCmd.AddCommand(keysInitCmd)

	// image subcommands
	tagCmd.AddCommand(tagAddCmd)
	tagCmd.AddCommand(tagRmCmd)
	tagCmd.AddCommand(tagSetCmd)

	// registry subcommands
	tagsCmd.AddCommand(tagsListCmd)
	tagsCmd.AddCommand(tagsCreateCmd)
	tagsCmd.AddCommand(tagsDeleteCmd)
	tagsCmd.AddCommand(tagsSearchCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(lastCmd)
	rootCmd.AddCommand(dirsCmd)
	rootCmd.AddCommand(imagesCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(revertCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of renames to show")
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().String("vault", "", "Vault to restore from (default: first configured)")
}
