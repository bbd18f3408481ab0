package config

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"
)

// SFTPConfig holds the optional summary-export delivery target. Delivery
// is skipped when Host is empty.
type SFTPConfig struct {
	Host      string `json:"host"`
	Port      string `json:"port"`
	User      string `json:"user"`
	Password  string `json:"password"`
	RemoteDir string `json:"remoteDir"`
}

type Config struct {
	DBPath                 string     `json:"dbPath"`
	ListenAddr             string     `json:"listenAddr"`
	FallbackUPCPath        string     `json:"fallbackUpcPath"`
	ExportFolderPath       string     `json:"exportFolderPath"`
	SummaryRebuildExpr     string     `json:"summaryRebuildExpr"`
	BoBatchExpr            string     `json:"boBatchExpr"`
	SFTP                   SFTPConfig `json:"sftp"`
	DisableBrowserLaunch   bool       `json:"disableBrowserLaunch"`
	SchedulerDisabled      bool       `json:"schedulerDisabled"`
	SummaryExportDelimiter string     `json:"summaryExportDelimiter"`
}

var (
	cfg Config
	mu  sync.RWMutex
)

const configFilePath = "./rtracker_config.json"

func defaults() Config {
	return Config{
		DBPath:                 "./receiving_tracker.db",
		ListenAddr:             ":8080",
		FallbackUPCPath:        "./part_identifiers_fallback.csv",
		ExportFolderPath:       "./exports",
		SummaryRebuildExpr:     "*/5 * * * *",
		BoBatchExpr:            "0 * * * *",
		SummaryExportDelimiter: "\t",
	}
}

// LoadConfig reads the JSON config file, then applies environment
// overrides (RT_DB_PATH, RT_LISTEN_ADDR, RT_SFTP_HOST, ...). A missing
// file is not an error; defaults apply.
func LoadConfig() (Config, error) {
	mu.Lock()
	defer mu.Unlock()

	c := defaults()
	file, err := os.ReadFile(configFilePath)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}
	if err == nil {
		if jsonErr := json.Unmarshal(file, &c); jsonErr != nil {
			return Config{}, jsonErr
		}
	}
	applyEnv(&c)
	if c.SummaryExportDelimiter == "" {
		c.SummaryExportDelimiter = "\t"
	}
	cfg = c
	return cfg, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("RT_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("RT_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("RT_FALLBACK_UPC_PATH"); v != "" {
		c.FallbackUPCPath = v
	}
	if v := os.Getenv("RT_EXPORT_FOLDER"); v != "" {
		c.ExportFolderPath = v
	}
	if v := os.Getenv("RT_SFTP_HOST"); v != "" {
		c.SFTP.Host = v
	}
	if v := os.Getenv("RT_SFTP_PORT"); v != "" {
		c.SFTP.Port = v
	}
	if v := os.Getenv("RT_SFTP_USER"); v != "" {
		c.SFTP.User = v
	}
	if v := os.Getenv("RT_SFTP_PASSWORD"); v != "" {
		c.SFTP.Password = v
	}
	if v := os.Getenv("RT_SFTP_REMOTE_DIR"); v != "" {
		c.SFTP.RemoteDir = v
	}
	if v := os.Getenv("RT_SCHEDULER_DISABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.SchedulerDisabled = b
		}
	}
}

// SaveConfig persists the config and makes it current.
func SaveConfig(newCfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	file, err := json.MarshalIndent(newCfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(configFilePath, file, 0644); err != nil {
		return err
	}
	cfg = newCfg
	return nil
}

// GetConfig returns the current config snapshot.
func GetConfig() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}
