package config

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

// Settings holds every tunable consulted by the pipeline
type Settings struct {
	OutputDir            string        `mapstructure:"output_dir"`
	ExtractionThreads    int           `mapstructure:"extraction_threads"`
	DownloadThreads      int           `mapstructure:"download_threads"`
	MinFileSize          int64         `mapstructure:"min_file_size"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	MatchDateModified    bool          `mapstructure:"match_date_modified"`
	DownloadRedditVideos bool          `mapstructure:"download_reddit_videos"`

	Multipart      MultipartConfig      `mapstructure:"multipart"`
	Extractors     map[string]bool      `mapstructure:"extractors"`
	SupportedSites SupportedSitesConfig `mapstructure:"supported_sites"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Mongo          MongoConfig          `mapstructure:"mongo"`
	Reddit         RedditConfig         `mapstructure:"reddit"`
	Imgur          ImgurConfig          `mapstructure:"imgur"`
	Gfycat         APIConfig            `mapstructure:"gfycat"`
	Redgifs        APIConfig            `mapstructure:"redgifs"`
	FFmpeg         FFmpegConfig         `mapstructure:"ffmpeg"`
	YTDLP          YTDLPConfig          `mapstructure:"ytdlp"`
	Log            LogConfig            `mapstructure:"log"`

	// Defaults is applied to reddit objects that are created without
	// explicit settings.
	Defaults domain.ObjectSettings `mapstructure:"defaults"`

	mu sync.RWMutex
}

// MultipartConfig controls ranged downloads of large files
type MultipartConfig struct {
	Threshold int64 `mapstructure:"threshold"`
	ChunkSize int64 `mapstructure:"chunk_size"`
	Workers   int   `mapstructure:"workers"`
	Retries   int   `mapstructure:"retries"`
}

// SupportedSitesConfig locates the generic video site list
type SupportedSitesConfig struct {
	Path string        `mapstructure:"path"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// DatabaseConfig selects the SQL store
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// MongoConfig configures the optional message archive. An empty URI
// disables it.
type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// RedditConfig configures the remote content provider
type RedditConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	UserAgent         string  `mapstructure:"user_agent"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Retries           int     `mapstructure:"retries"`
	// Listing selects how new submissions are discovered: "api" or "feed".
	Listing string `mapstructure:"listing"`
}

// ImgurConfig configures the imgur API extractor
type ImgurConfig struct {
	ClientID string `mapstructure:"client_id"`
	APIBase  string `mapstructure:"api_base"`
}

// APIConfig is a provider API endpoint
type APIConfig struct {
	APIBase string `mapstructure:"api_base"`
}

// FFmpegConfig locates the mux binary
type FFmpegConfig struct {
	Path string `mapstructure:"path"`
}

// YTDLPConfig selects the format yt-dlp resolves for generic video pages
type YTDLPConfig struct {
	Format string `mapstructure:"format"`
}

// LogConfig controls the logrus logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output_dir", "./downloads")
	v.SetDefault("extraction_threads", 4)
	v.SetDefault("download_threads", 4)
	v.SetDefault("min_file_size", 1024)
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("match_date_modified", false)
	v.SetDefault("download_reddit_videos", true)

	v.SetDefault("multipart.threshold", 50*1024*1024)
	v.SetDefault("multipart.chunk_size", 10*1024*1024)
	v.SetDefault("multipart.workers", 4)
	v.SetDefault("multipart.retries", 3)

	v.SetDefault("supported_sites.path", "supported_sites.md")
	v.SetDefault("supported_sites.ttl", "24h")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "./data/redditdl.db")
	v.SetDefault("mongo.database", "redditdl")
	v.SetDefault("mongo.collection", "messages")

	v.SetDefault("reddit.base_url", "https://www.reddit.com")
	v.SetDefault("reddit.user_agent", "redditdl/1.0")
	v.SetDefault("reddit.requests_per_second", 1.0)
	v.SetDefault("reddit.retries", 3)
	v.SetDefault("reddit.listing", "api")

	v.SetDefault("imgur.api_base", "https://api.imgur.com/3")
	v.SetDefault("gfycat.api_base", "https://api.gfycat.com/v1")
	v.SetDefault("redgifs.api_base", "https://api.redgifs.com/v1")
	v.SetDefault("ffmpeg.path", "ffmpeg")
	v.SetDefault("ytdlp.format", "best")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("defaults.post_limit", 25)
	v.SetDefault("defaults.avoid_duplicates", true)
	v.SetDefault("defaults.download_images", true)
	v.SetDefault("defaults.download_gifs", true)
	v.SetDefault("defaults.download_videos", true)
	v.SetDefault("defaults.download_self_post_text", false)
	v.SetDefault("defaults.extract_self_post_links", false)
	v.SetDefault("defaults.self_post_format", "txt")
	v.SetDefault("defaults.comment_sort", "best")
	v.SetDefault("defaults.max_comment_depth", 1)
	v.SetDefault("defaults.max_comment_replies", 20)
	v.SetDefault("defaults.post_title_template", "%[title]")
	v.SetDefault("defaults.post_path_template", "%[significant_name]")
	v.SetDefault("defaults.comment_title_template", "%[author_name]-comment-%[comment_id]")
	v.SetDefault("defaults.comment_path_template", "%[significant_name]/comments")
}

// Load reads configuration from path (or config.yaml in the usual places when
// path is empty), then applies RDL_ prefixed environment overrides.
func Load(path string) (*Settings, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("RDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logrus.Debug("No config file found, using defaults and environment variables")
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Settings, error) {
	var s Settings
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		commentSortHook,
	))
	if err := v.Unmarshal(&s, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if s.Extractors == nil {
		s.Extractors = map[string]bool{}
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func commentSortHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(domain.CommentSort(0)) || from.Kind() != reflect.String {
		return data, nil
	}
	return domain.ParseCommentSort(data.(string))
}

func (s *Settings) validate() error {
	if s.ExtractionThreads < 1 || s.DownloadThreads < 1 {
		return fmt.Errorf("thread counts must be positive: extraction=%d download=%d", s.ExtractionThreads, s.DownloadThreads)
	}
	if s.Multipart.ChunkSize <= 0 {
		return fmt.Errorf("multipart.chunk_size must be positive, got %d", s.Multipart.ChunkSize)
	}
	switch s.Database.Driver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("unsupported database driver %q", s.Database.Driver)
	}
	switch s.Reddit.Listing {
	case "api", "feed":
	default:
		return fmt.Errorf("unsupported reddit listing %q", s.Reddit.Listing)
	}
	return nil
}

// ExtractorEnabled reports whether the named extractor may be dispatched to.
// Extractors not mentioned in configuration are enabled.
func (s *Settings) ExtractorEnabled(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enabled, ok := s.Extractors[name]
	return !ok || enabled
}

// SetExtractorEnabled toggles an extractor at runtime.
func (s *Settings) SetExtractorEnabled(name string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Extractors == nil {
		s.Extractors = map[string]bool{}
	}
	s.Extractors[name] = enabled
}

// NewLogger builds the process logger from the log section.
func (s *Settings) NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(s.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)
	if s.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
