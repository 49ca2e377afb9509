package main

import "hobbyhub-backend/services/shiftkeys"

type ArchiveSourceConfig struct {
	Name string `json:"name"`
	Url  string `json:"url"`
}

type ApiSourceConfig struct {
	Name         string `json:"name"`
	TokenUrl     string `json:"token_url"`
	CodesUrl     string `json:"codes_url"`
	ClientId     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type SourcesConfig struct {
	Archives []ArchiveSourceConfig `json:"archives"`
	Api      *ApiSourceConfig      `json:"api"`
}

type ShiftConfig struct {
	// base url of the rewards site, e.g. https://shift.gearboxsoftware.com
	BaseUrl string `json:"base_url"`
	// directory for raw http dumps of redemption sessions, debug only
	DebugDir string        `json:"debug_dir"`
	Sources  SourcesConfig `json:"sources"`
	// cron spec for scheduled sweeps, empty disables them
	SweepCron          string  `json:"sweep_cron"`
	SweepLookbackHours float64 `json:"sweep_lookback_hours"`
}

type AccountsConfig struct {
	DbFile           string `json:"db_file"`
	EncryptionSecret string `json:"encryption_secret"`
}

type ReportConfig struct {
	Enabled bool                 `json:"enabled"`
	Smtp    shiftkeys.SmtpConfig `json:"smtp"`
}

type Config struct {
	Port     int            `json:"port"`
	Shift    ShiftConfig    `json:"shift"`
	Accounts AccountsConfig `json:"accounts"`
	Report   ReportConfig   `json:"report"`
}
