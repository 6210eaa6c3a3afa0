package main

// GlobalFlags holds persistent flags shared by every command
type GlobalFlags struct {
	ConfigPath string
	EnvFile    string
	LogLevel   string
}

// CheckFlags holds flags for the check command
type CheckFlags struct {
	JSON bool
}

// HistoryFlags holds flags for the history command
type HistoryFlags struct {
	Platform string
	Format   string
}
