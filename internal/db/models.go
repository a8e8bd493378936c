package db

import "time"

// Article maps allball.articles.
type Article struct {
	ArticleID          int64      `gorm:"column:article_id;primaryKey;autoIncrement"`
	ExternalID         string     `gorm:"column:external_id;type:text;not null;uniqueIndex:articles_external_id_key"`
	Slug               string     `gorm:"column:slug;type:text;not null;uniqueIndex:articles_slug_key"`
	Title              string     `gorm:"column:title;type:text;not null"`
	Sport              string     `gorm:"column:sport;type:text;not null"`
	LeagueID           string     `gorm:"column:league_id;type:text;not null"`
	Region             string     `gorm:"column:region;type:text;not null;default:''"`
	Division           int        `gorm:"column:division;type:integer;not null;default:1"`
	Language           string     `gorm:"column:language;type:text;not null;default:und"`
	ImageURL           *string    `gorm:"column:image_url;type:text"`
	SourceURL          string     `gorm:"column:source_url;type:text;not null"`
	Summary            string     `gorm:"column:summary;type:text;not null;default:''"`
	BodyContent        string     `gorm:"column:body_content;type:text;not null;default:''"`
	EnrichedContent    *string    `gorm:"column:enriched_content;type:text"`
	EnrichedFlag       bool       `gorm:"column:enriched_flag;type:boolean;not null;default:false"`
	EnrichmentProvider *string    `gorm:"column:enrichment_provider;type:text"`
	IsPublished        bool       `gorm:"column:is_published;type:boolean;not null;default:true"`
	PublishedAt        *time.Time `gorm:"column:published_at;type:timestamptz"`
	CreatedAt          time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Article) TableName() string { return "allball.articles" }

// PipelineRun maps allball.pipeline_runs.
type PipelineRun struct {
	RunID         int64      `gorm:"column:run_id;primaryKey;autoIncrement"`
	RunUUID       string     `gorm:"column:run_uuid;type:uuid;not null;unique"`
	TriggeredBy   string     `gorm:"column:triggered_by;type:text;not null"`
	Status        string     `gorm:"column:status;type:allball.pipeline_run_status;not null;default:running"`
	StartedAt     time.Time  `gorm:"column:started_at;type:timestamptz;not null;default:now()"`
	FinishedAt    *time.Time `gorm:"column:finished_at;type:timestamptz"`
	ItemsFetched  int        `gorm:"column:items_fetched;type:integer;not null;default:0"`
	ItemsUnusable int        `gorm:"column:items_unusable;type:integer;not null;default:0"`
	ItemsStale    int        `gorm:"column:items_stale;type:integer;not null;default:0"`
	ItemsUndated  int        `gorm:"column:items_undated;type:integer;not null;default:0"`
	ItemsKept     int        `gorm:"column:items_kept;type:integer;not null;default:0"`
	ItemsCreated  int        `gorm:"column:items_created;type:integer;not null;default:0"`
	ItemsExisting int        `gorm:"column:items_existing;type:integer;not null;default:0"`
	ItemsEnriched int        `gorm:"column:items_enriched;type:integer;not null;default:0"`
	ItemsFallback int        `gorm:"column:items_fallback;type:integer;not null;default:0"`
	ErrorMessage  *string    `gorm:"column:error_message;type:text"`
	CreatedAt     time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (PipelineRun) TableName() string { return "allball.pipeline_runs" }

func autoMigrateModels() []any {
	return []any{
		&Article{},
		&PipelineRun{},
	}
}
