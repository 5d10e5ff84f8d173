package config

import (
	"errors"
	"sort"
	"strings"

	"github.com/ansel1/merry/v2"
	"github.com/spf13/viper"

	"github.com/bcc-code/opencast-migrate/mediapackage"
)

// Config is the full configuration of a migration run: the two systems,
// where files live on disk, and the filtering and ACL policies applied
// while exporting.
type Config struct {
	Source      System
	Destination System
	Storage     Storage
	Export      Export
	Filters     Filters
	ACL         ACL
	Series      Series
}

// System describes one Opencast installation. Admin hosts the archive
// and series endpoints, Engage the search endpoint.
type System struct {
	AdminURL  string `mapstructure:"admin_url"`
	EngageURL string `mapstructure:"engage_url"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	// LegacyArchive selects the pre-2.x archive endpoint name.
	LegacyArchive bool `mapstructure:"legacy_archive"`
}

type Storage struct {
	// ArchiveDir is the root of the source system's episode archive.
	ArchiveDir string `mapstructure:"archive_dir"`
	// SearchDirs are the roots the distribution services publish into,
	// tried in order.
	SearchDirs []string `mapstructure:"search_dirs"`
}

type Export struct {
	// Dir is where exported mediapackages are assembled.
	Dir string `mapstructure:"dir"`
	// InboxDir is the destination system's ingest inbox.
	InboxDir string `mapstructure:"inbox_dir"`
	// DeleteIngested removes the payload files after a successful
	// ingest, keeping only the marker files.
	DeleteIngested bool `mapstructure:"delete_ingested"`
	PageSize       int  `mapstructure:"page_size"`
}

type Filters struct {
	// Flavors that must not be ingested.
	Flavors []string `mapstructure:"flavors"`
	// StripTags are removed from every exported element.
	StripTags []string `mapstructure:"strip_tags"`
}

type ACL struct {
	// DefaultRoles are added to every migrated ACL when absent.
	DefaultRoles []Role `mapstructure:"default_roles"`
	// RolePrefix is prepended to roles that do not already look like
	// platform roles.
	RolePrefix string `mapstructure:"role_prefix"`
}

type Role struct {
	Role    string            `mapstructure:"role"`
	Actions map[string]string `mapstructure:"actions"`
}

// RoleActions converts the configured default roles into the form the
// ACL rebuild expects. Actions are sorted by name to keep the generated
// ACLs stable.
func (a ACL) RoleActions() []mediapackage.RoleActions {
	out := make([]mediapackage.RoleActions, 0, len(a.DefaultRoles))
	for _, role := range a.DefaultRoles {
		names := make([]string, 0, len(role.Actions))
		for name := range role.Actions {
			names = append(names, name)
		}
		sort.Strings(names)

		actions := make([]mediapackage.Action, 0, len(names))
		for _, name := range names {
			actions = append(actions, mediapackage.Action{Name: name, Allow: role.Actions[name]})
		}
		out = append(out, mediapackage.RoleActions{Role: role.Role, Actions: actions})
	}
	return out
}

type Series struct {
	// ExtraMetadata is appended to every series created in the
	// destination system, keyed by Dublin Core term.
	ExtraMetadata map[string]string `mapstructure:"extra_metadata"`
}

// Load reads the configuration file and environment overrides. The file
// is optional when no explicit path is given.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MIGRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, merry.Wrap(err)
		}
	} else {
		v.SetConfigName("migrate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, merry.Wrap(err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, merry.Wrap(err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("export.page_size", 20)
	v.SetDefault("export.delete_ingested", true)
	v.SetDefault("filters.flavors", []string{
		"security/xacml+series",
		"security/xacml+episode",
		"dublincore/series",
	})
	v.SetDefault("filters.strip_tags", []string{
		"engage-download",
		"engage-streaming",
	})
	v.SetDefault("acl.role_prefix", "LDAP_")
	v.SetDefault("acl.default_roles", []map[string]any{
		{"role": "ROLE_ADMIN", "actions": map[string]string{"read": "true", "write": "true"}},
		{"role": "ROLE_ANONYMOUS", "actions": map[string]string{"read": "true"}},
	})
	v.SetDefault("series.extra_metadata", map[string]string{
		"license": "ALLRIGHTS",
	})
}
