package cfg

import "time"

type Cfg struct {
	// Upstream catalog
	UpstreamURL    string        `validate:"required,url"`
	Lang           string        `validate:"required,alpha"`
	DetailLang     string        `validate:"required,alpha"`
	PageSize       int           `validate:"min=1,max=100"`
	EventStartDate string        `validate:"len=8,numeric"`
	RateLimit      int           `validate:"min=0"`
	MaxRetries     int           `validate:"min=0,max=10"`
	Timeout        time.Duration `validate:"gt=0"`

	// Catalog behaviour
	DelegateRegion bool
	RegionsFile    string
	FeaturedCount  int `validate:"min=0"`

	// Detail store
	DBPath         string        `validate:"required"`
	DetailCacheTTL time.Duration `validate:"min=0"`

	// Sessions
	SessionTTL      time.Duration `validate:"gt=0"`
	JanitorSchedule string        `validate:"required"`

	// Application configuration
	Port    string `validate:"required,numeric"`
	BaseUrl string `validate:"omitempty,url"`

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
