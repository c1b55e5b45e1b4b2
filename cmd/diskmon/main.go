package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	cfgpkg "github.com/local/docjanitor/internal/config"
	"github.com/local/docjanitor/internal/diskmon"
	logpkg "github.com/local/docjanitor/internal/logger"
	"github.com/local/docjanitor/internal/mailer"
	"github.com/local/docjanitor/internal/metrics"
)

var (
	flagVerbose   bool
	flagOutput    string
	flagNoEmail   bool
	flagWarning   float64
	flagCritical  float64
	flagEmergency float64
	flagServer    string
	flagPort      int
	flagUser      string
	flagPassword  string
	flagFrom      string
	flagTo        []string
	flagUseTLS    bool
)

func main() {
	root := &cobra.Command{
		Use:   "docjanitor-diskmon",
		Short: "Check free disk space on the managed paths and alert",
		Long: "Samples free space for the uploads root, the results root and " +
			"the filesystem root, classifies an alert level against the " +
			"configured thresholds and optionally sends an alert email.",
		SilenceUsage: true,
		Run:          run,
	}

	root.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	root.Flags().StringVarP(&flagOutput, "output", "o", "", "write the report to a JSON file")
	root.Flags().BoolVar(&flagNoEmail, "no-email", false, "never send an alert email")
	root.Flags().Float64Var(&flagWarning, "warning", 0, "warning threshold (free percent)")
	root.Flags().Float64Var(&flagCritical, "critical", 0, "critical threshold (free percent)")
	root.Flags().Float64Var(&flagEmergency, "emergency", 0, "emergency threshold (free percent)")
	root.Flags().StringVar(&flagServer, "smtp-server", "", "SMTP server override")
	root.Flags().IntVar(&flagPort, "smtp-port", 0, "SMTP port override")
	root.Flags().StringVar(&flagUser, "smtp-user", "", "SMTP user override")
	root.Flags().StringVar(&flagPassword, "smtp-password", "", "SMTP password override")
	root.Flags().StringVar(&flagFrom, "from-email", "", "alert sender override")
	root.Flags().StringSliceVar(&flagTo, "to-emails", nil, "alert recipients override")
	root.Flags().BoolVar(&flagUseTLS, "use-tls", true, "use STARTTLS for SMTP")

	// Diagnostics only; never block automation with a failure exit.
	_ = root.Execute()
	os.Exit(0)
}

func run(cmd *cobra.Command, _ []string) {
	cfg := cfgpkg.FromEnv()

	level := "info"
	if flagVerbose {
		level = "debug"
	}
	_ = logpkg.Init(logpkg.Options{Level: level, Pretty: true})
	defer logpkg.Close()

	metrics.Init()

	thresholds := diskmon.Thresholds{
		Warning:   cfg.Disk.WarningPercent,
		Critical:  cfg.Disk.CriticalPercent,
		Emergency: cfg.Disk.EmergencyPercent,
	}
	if cmd.Flags().Changed("warning") {
		thresholds.Warning = flagWarning
	}
	if cmd.Flags().Changed("critical") {
		thresholds.Critical = flagCritical
	}
	if cmd.Flags().Changed("emergency") {
		thresholds.Emergency = flagEmergency
	}

	mailCfg := cfg.Mail
	if cmd.Flags().Changed("smtp-server") {
		mailCfg.Server = flagServer
		mailCfg.Enabled = true
	}
	if cmd.Flags().Changed("smtp-port") {
		mailCfg.Port = flagPort
	}
	if cmd.Flags().Changed("smtp-user") {
		mailCfg.User = flagUser
	}
	if cmd.Flags().Changed("smtp-password") {
		mailCfg.Password = flagPassword
	}
	if cmd.Flags().Changed("from-email") {
		mailCfg.From = flagFrom
	}
	if cmd.Flags().Changed("to-emails") {
		mailCfg.To = flagTo
	}
	if cmd.Flags().Changed("use-tls") {
		mailCfg.UseTLS = flagUseTLS
	}
	if flagNoEmail {
		mailCfg.Enabled = false
	}

	var alertMailer diskmon.Mailer
	if m := mailer.New(mailCfg); m != nil {
		alertMailer = m
	}

	monitor := diskmon.New(thresholds, cfg.Paths.UploadDir, cfg.Paths.ResultsDir, alertMailer)
	report := monitor.CheckAndAlert()

	printReport(report)

	if flagOutput != "" {
		if err := writeJSON(flagOutput, report); err != nil {
			log.Error().Err(err).Str("path", flagOutput).Msg("failed to write report file")
		}
	}
}

func printReport(r diskmon.Report) {
	fmt.Printf("Disk space report at %s\n", r.Timestamp)
	for _, name := range []string{"uploads", "results", "root"} {
		reading, ok := r.Readings[name]
		if !ok {
			continue
		}
		if reading.Err != "" {
			fmt.Printf("  %-8s %s: error: %s\n", name, reading.Path, reading.Err)
			continue
		}
		fmt.Printf("  %-8s %s: %s, %.2f%% free (%.2f GB of %.2f GB)\n",
			name, reading.Path, strings.ToUpper(reading.AlertLevel),
			reading.FreePercent, reading.FreeGB, reading.TotalGB)
	}
	if r.HasAlert {
		fmt.Printf("Highest alert: %s\n", strings.ToUpper(r.HighestAlert))
		if r.EmailSent {
			fmt.Println("Alert email sent.")
		} else {
			fmt.Println("Alert email not sent.")
		}
		fmt.Println("Consider running docjanitor-cleanup to reclaim space.")
	} else {
		fmt.Println("All monitored paths are healthy.")
	}
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
