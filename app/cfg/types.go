package cfg

type Cfg struct {
	// Storage configuration
	DBPath       string
	SettingsFile string
	ResetDB      bool

	// Application configuration
	Port            string
	WorkerCount     int
	SweepInterval   int
	APIAccessKey    string
	FetchTimeout    int
	GitHubTimeout   int
	RequestTimeout  int
	RedisAddr       string
	SnippetCacheTTL int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	LogFile   string
	Version   string
}
