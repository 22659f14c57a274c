// Package config holds all receiptfix configuration: one YAML file with
// typed sections, defaults for everything, and a small set of environment
// overrides for the values operators change most.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"receiptfix/internal/faults"
)

// Config is the full run configuration.
type Config struct {
	// Source is the tab-separated correction feed.
	Source string `yaml:"source"`

	// BatchSize bounds one atomic pass through the three phases.
	BatchSize int `yaml:"batch_size"`

	// Description is written into the reason field of every correction.
	Description string `yaml:"description"`

	// Exclusions points at an aggregated blocked-key list; listed units are
	// skipped before scheduling. Optional.
	Exclusions string `yaml:"exclusions"`

	Partition PartitionConfig `yaml:"partition"`
	Target    TargetConfig    `yaml:"target"`
	Job       JobConfig       `yaml:"job"`
	Drain     DrainConfig     `yaml:"drain"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Logging   LoggingConfig   `yaml:"logging"`
	Browser   BrowserConfig   `yaml:"browser"`
}

// PartitionConfig configures the disjoint work-stream split.
type PartitionConfig struct {
	// Groups is the number of disjoint streams; 1 disables partitioning.
	Groups int `yaml:"groups"`

	// OutputDir receives the per-group feed files emitted by the partition
	// command.
	OutputDir string `yaml:"output_dir"`

	// Parallel runs the groups concurrently within one process.
	Parallel bool `yaml:"parallel"`
}

// TargetConfig names the application-side fields and dialogs the correction
// phase drives. The application's base URL and element selectors live here
// too, consumed only by the browser drivers.
type TargetConfig struct {
	BaseURL string `yaml:"base_url"`

	TypeField      string `yaml:"type_field"`
	DateField      string `yaml:"date_field"`
	CodeSeparator  string `yaml:"code_separator"`
	SentinelCode   string `yaml:"sentinel_code"`
	CorrectionList string `yaml:"correction_list"`
	ToggleFirst    string `yaml:"toggle_first"`
	ToggleSecond   string `yaml:"toggle_second"`
	ReasonField    string `yaml:"reason_field"`
	IndexField     string `yaml:"index_field"`
	IndexDoneValue string `yaml:"index_done_value"`

	// FatalPatterns extends the built-in blocking phrase.
	FatalPatterns []string `yaml:"fatal_patterns"`

	SubmitPoll     string `yaml:"submit_poll"`
	SubmitDeadline string `yaml:"submit_deadline"`

	Selectors SelectorsConfig `yaml:"selectors"`
}

// SelectorsConfig maps the driver's logical operations onto CSS selectors.
// Entries with a %s receive the field or option name.
type SelectorsConfig struct {
	SearchInput  string `yaml:"search_input"`
	SearchGo     string `yaml:"search_go"`
	FieldText    string `yaml:"field_text"`    // read a descriptive field
	FieldInput   string `yaml:"field_input"`   // fill an input
	ListFilter   string `yaml:"list_filter"`   // filtered selector's search box
	ListOption   string `yaml:"list_option"`   // option row by value
	Toggle       string `yaml:"toggle"`        // option checkbox by name
	SubmitButton string `yaml:"submit_button"`
	StatusField  string `yaml:"status_field"`
	Notification string `yaml:"notification"`
	NotifyClose  string `yaml:"notify_close"`
	CancelButton string `yaml:"cancel_button"`
	ConfirmOK    string `yaml:"confirm_ok"`
	PendingRows  string `yaml:"pending_rows"`
	RowOpen      string `yaml:"row_open"` // row link by item id
	ItemRoot     string `yaml:"item_root"`
	RemoveAll    string `yaml:"remove_all"`
	RefSearch    string `yaml:"ref_search"`
	RefOption    string `yaml:"ref_option"` // result row by label
}

// JobConfig configures the job-execution service session.
type JobConfig struct {
	SurfaceURL   string `yaml:"surface_url"`
	StartButton  string `yaml:"start_button"`
	ParamInput   string `yaml:"param_input"`
	RefreshLink  string `yaml:"refresh_link"`
	StatusCell   string `yaml:"status_cell"`
	DoneStatus   string `yaml:"done_status"`
	PollInterval string `yaml:"poll_interval"`
	Deadline     string `yaml:"deadline"`
}

// DrainConfig bounds the pending-queue drain.
type DrainConfig struct {
	MaxIterations  int `yaml:"max_iterations"`
	StallThreshold int `yaml:"stall_threshold"`
}

// LedgerConfig configures the failure ledger.
type LedgerConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Dir   string `yaml:"dir"`   // per-run log files; empty disables file output
}

// BrowserConfig configures the Chrome sessions.
type BrowserConfig struct {
	Headless          bool   `yaml:"headless"`
	Bin               string `yaml:"bin"`
	DebuggerURL       string `yaml:"debugger_url"`
	ViewportWidth     int    `yaml:"viewport_width"`
	ViewportHeight    int    `yaml:"viewport_height"`
	NavigationTimeout string `yaml:"navigation_timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Source:      "input/records.tsv",
		BatchSize:   20,
		Description: "automated receipt correction",

		Partition: PartitionConfig{
			Groups:    1,
			OutputDir: "partition",
		},

		Target: TargetConfig{
			TypeField:      "document_type",
			DateField:      "document_date",
			CodeSeparator:  "-",
			SentinelCode:   "MAN",
			CorrectionList: "correction_type",
			ToggleFirst:    "recalculate",
			ToggleSecond:   "reapply_references",
			ReasonField:    "reason",
			IndexField:     "queue_index",
			IndexDoneValue: "0",
			SubmitPoll:     "2s",
			SubmitDeadline: "90s",
			Selectors: SelectorsConfig{
				SearchInput:  "#receipt-search",
				SearchGo:     "#receipt-search-go",
				FieldText:    "[data-field=%q] .value",
				FieldInput:   "input[name=%q]",
				ListFilter:   "#correction-dialog .filter-input",
				ListOption:   "#correction-dialog [data-value=%q]",
				Toggle:       "input[type=checkbox][name=%q]",
				SubmitButton: "#dialog-submit",
				StatusField:  "[data-field=%q] .value",
				Notification: ".toast-message",
				NotifyClose:  ".toast-message .close",
				CancelButton: "#dialog-cancel",
				ConfirmOK:    ".confirm-dialog .ok",
				PendingRows:  "#pending-table tbody tr",
				RowOpen:      "#pending-table tr[data-id=%q] a",
				ItemRoot:     "#item-editor",
				RemoveAll:    "#item-editor .remove-all-refs",
				RefSearch:    "#item-editor .ref-search",
				RefOption:    "#item-editor .ref-results [data-label=%q]",
			},
		},

		Job: JobConfig{
			StartButton:  "#job-start",
			ParamInput:   "#job-param",
			RefreshLink:  "#job-status-refresh",
			StatusCell:   "#job-status .state",
			DoneStatus:   "Completed",
			PollInterval: "5s",
			Deadline:     "10m",
		},

		Drain: DrainConfig{
			MaxIterations:  500,
			StallThreshold: 3,
		},

		Ledger: LedgerConfig{
			Dir: "ledgers",
		},

		Logging: LoggingConfig{
			Level: "info",
		},

		Browser: BrowserConfig{
			Headless:          true,
			ViewportWidth:     1920,
			ViewportHeight:    1080,
			NavigationTimeout: "30s",
		},
	}
}

// Load reads the YAML file at path over the defaults and applies environment
// overrides. A missing file yields defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// A named file must exist: silently falling back to defaults would turn
	// an operator typo into a run against the default source and URLs. Only
	// the empty path means defaults.
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets operators redirect a run without editing the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RECEIPTFIX_SOURCE"); v != "" {
		c.Source = v
	}
	if v := os.Getenv("RECEIPTFIX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BatchSize = n
		}
	}
	if v := os.Getenv("RECEIPTFIX_BASE_URL"); v != "" {
		c.Target.BaseURL = v
	}
	if v := os.Getenv("RECEIPTFIX_JOB_URL"); v != "" {
		c.Job.SurfaceURL = v
	}
	if v := os.Getenv("RECEIPTFIX_LEDGER_DIR"); v != "" {
		c.Ledger.Dir = v
	}
	if v := os.Getenv("RECEIPTFIX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects configurations that cannot produce a meaningful run.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size %d: %w", c.BatchSize, faults.ErrInvalidConfiguration)
	}
	if c.Partition.Groups < 1 {
		return fmt.Errorf("partition.groups %d: %w", c.Partition.Groups, faults.ErrInvalidConfiguration)
	}
	if c.Drain.MaxIterations < 1 {
		return fmt.Errorf("drain.max_iterations %d: %w", c.Drain.MaxIterations, faults.ErrInvalidConfiguration)
	}
	if c.Drain.StallThreshold < 1 {
		return fmt.Errorf("drain.stall_threshold %d: %w", c.Drain.StallThreshold, faults.ErrInvalidConfiguration)
	}
	for _, d := range []struct {
		name  string
		value string
	}{
		{"target.submit_poll", c.Target.SubmitPoll},
		{"target.submit_deadline", c.Target.SubmitDeadline},
		{"job.poll_interval", c.Job.PollInterval},
		{"job.deadline", c.Job.Deadline},
		{"browser.navigation_timeout", c.Browser.NavigationTimeout},
	} {
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("%s %q: %w", d.name, d.value, faults.ErrInvalidConfiguration)
		}
	}
	return nil
}

// duration parses a validated duration string, falling back when unset.
func duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// SubmitPollInterval returns the submit-await poll delay.
func (t TargetConfig) SubmitPollInterval() time.Duration {
	return duration(t.SubmitPoll, 2*time.Second)
}

// SubmitResultDeadline returns the submit-await budget.
func (t TargetConfig) SubmitResultDeadline() time.Duration {
	return duration(t.SubmitDeadline, 90*time.Second)
}

// JobPollInterval returns the job status poll delay.
func (j JobConfig) JobPollInterval() time.Duration {
	return duration(j.PollInterval, 5*time.Second)
}

// JobDeadline returns the per-batch job completion budget.
func (j JobConfig) JobDeadline() time.Duration {
	return duration(j.Deadline, 10*time.Minute)
}

// NavTimeout returns the navigation budget.
func (b BrowserConfig) NavTimeout() time.Duration {
	return duration(b.NavigationTimeout, 30*time.Second)
}
