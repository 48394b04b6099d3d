package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. WEAKLING_HOME_DIR
const EnvPrefix = "WEAKLING"

var (
	instance *Config
	mu       sync.RWMutex
	loadMu   sync.Mutex
)

// Get returns the current configuration instance
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// Config represents the global configuration. Library specific sections
// (collector, mutex, ...) are owned by the registered components.
type Config struct {
	HomeDir string `mapstructure:"home_dir"`
}

type ConfigLogging struct {
	ConsoleLevel string `mapstructure:"console_level" default:"info"`
	FileLevel    string `mapstructure:"file_level" default:"none"`
	File         string `mapstructure:"file" default:""`
	MaxSizeMB    int    `mapstructure:"max_size_mb" default:"100"`
	MaxBackups   int    `mapstructure:"max_backups" default:"3"`
	MaxAgeDays   int    `mapstructure:"max_age_days" default:"7"`
}

// ConfigComponent is an interface that configuration components must implement
type ConfigComponent interface {
	// Load loads and validates the configuration
	Load(name string, config map[string]interface{}) error

	// GetDefault returns the default configuration
	GetDefault() interface{}
}

var (
	registryMu                 sync.Mutex
	registeredLoggers          = make(map[string]ConfigComponent)
	registeredConfigComponents = make(map[string]ConfigComponent)
)

// RegisterLogger registers a logger component, its section is logging.<name>
func RegisterLogger(name string, component ConfigComponent) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registeredLoggers[name]; ok {
		panic(fmt.Sprintf("Logger %s already registered", name))
	}
	registeredLoggers[name] = component
}

// RegisterConfigComponent registers a library component, its section is <name>
func RegisterConfigComponent(name string, component ConfigComponent) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registeredConfigComponents[name]; ok {
		panic(fmt.Sprintf("Config component %s already registered", name))
	}
	registeredConfigComponents[name] = component
}

// Load loads the configuration from files and environment variables.
// The first successful call wins, use Reset() to load again.
func Load(configPaths ...string) (*Config, error) {
	loadMu.Lock()
	defer loadMu.Unlock()

	if cfg := Get(); cfg != nil {
		return cfg, nil
	}
	return load(configPaths...)
}

func load(configPaths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for _, path := range configPaths {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// components may resolve paths against the home dir, publish first
	setInstance(&config)
	if err := loadComponents(v); err != nil {
		setInstance(nil)
		return nil, err
	}

	return &config, nil
}

func setInstance(cfg *Config) {
	mu.Lock()
	instance = cfg
	mu.Unlock()
}

// loadComponents feeds every registered logger and component its config section.
// Loggers go first so that components can log with the configured levels.
func loadComponents(v *viper.Viper) error {
	registryMu.Lock()
	loggers := sortedComponents(registeredLoggers)
	components := sortedComponents(registeredConfigComponents)
	registryMu.Unlock()

	for _, c := range loggers {
		if err := c.component.Load(c.name, sectionOf(v, "logging."+c.name)); err != nil {
			return fmt.Errorf("failed to load config for logger %s: %w", c.name, err)
		}
	}

	for _, c := range components {
		if err := c.component.Load(c.name, sectionOf(v, c.name)); err != nil {
			return fmt.Errorf("failed to load config for component %s: %w", c.name, err)
		}
	}
	return nil
}

type namedComponent struct {
	name      string
	component ConfigComponent
}

func sortedComponents(m map[string]ConfigComponent) []namedComponent {
	out := make([]namedComponent, 0, len(m))
	for name, c := range m {
		out = append(out, namedComponent{name: name, component: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func sectionOf(v *viper.Viper, key string) map[string]interface{} {
	if sub := v.Sub(key); sub != nil {
		return sub.AllSettings()
	}
	return make(map[string]interface{})
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("home_dir", getDefaultHomeDir())

	registryMu.Lock()
	defer registryMu.Unlock()
	for name, component := range registeredLoggers {
		v.SetDefault("logging."+name, structToMap(component.GetDefault()))
	}
	for name, component := range registeredConfigComponents {
		v.SetDefault(name, structToMap(component.GetDefault()))
	}
}

// Reset clears the current configuration instance (mainly for testing)
func Reset() {
	setInstance(nil)
}

// GetDefault builds the configuration from defaults only, applies it to all
// registered components and makes it the current instance
func GetDefault() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("failed to unmarshal default config: %w", err))
	}

	loadMu.Lock()
	defer loadMu.Unlock()

	setInstance(&config)
	if err := loadComponents(v); err != nil {
		panic(err)
	}

	return &config
}

// ToYaml returns the YAML representation of the full configuration,
// the base config merged with defaults of all registered loggers and components.
func (c *Config) ToYaml() (string, error) {
	baseMap, ok := structToMap(c).(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("failed extracting base config as map")
	}

	registryMu.Lock()
	loggingSection := make(map[string]interface{})
	for name, comp := range registeredLoggers {
		loggingSection[name] = structToMap(comp.GetDefault())
	}
	baseMap["logging"] = loggingSection
	for key, comp := range registeredConfigComponents {
		baseMap[key] = structToMap(comp.GetDefault())
	}
	registryMu.Unlock()

	yamlData, err := yaml.Marshal(baseMap)
	if err != nil {
		return "", fmt.Errorf("error marshaling full config to YAML: %w", err)
	}

	return string(yamlData), nil
}

// structToMap recursively converts structs to maps keyed by their "mapstructure" tag.
// Untagged and unexported fields are skipped.
func structToMap(i interface{}) interface{} {
	val := reflect.ValueOf(i)
	if !val.IsValid() {
		return i
	}
	switch val.Kind() {
	case reflect.Ptr:
		if val.IsNil() {
			return nil
		}
		return structToMap(val.Elem().Interface())
	case reflect.Struct:
		out := make(map[string]interface{})
		typ := val.Type()
		for i := 0; i < typ.NumField(); i++ {
			field := typ.Field(i)
			if field.PkgPath != "" {
				continue
			}
			tag := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
			if tag == "" {
				continue
			}
			out[tag] = structToMap(val.Field(i).Interface())
		}
		return out
	case reflect.Slice:
		outSlice := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			outSlice[i] = structToMap(val.Index(i).Interface())
		}
		return outSlice
	default:
		return i
	}
}

// GetWeaklingHomeDir returns the resolved .weakling directory path
func GetWeaklingHomeDir() (string, error) {
	return ResolveHomeDir("~/.weakling")
}

// ResolveHomeDir resolves the home directory path based on OS and expands aliases
func ResolveHomeDir(homeDir string) (string, error) {
	if homeDir == "" {
		return "", fmt.Errorf("home dir path is not set")
	}

	if runtime.GOOS == "windows" {
		homeDir = os.ExpandEnv(homeDir)
	} else {
		homeDir = expandHomeDir(homeDir)
	}

	return filepath.Clean(homeDir), nil
}

// expandHomeDir expands ~/ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func getDefaultHomeDir() string {
	homeDir, err := GetWeaklingHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".weakling")
	}
	return homeDir
}

// UpdateStructFromConfig updates the *toStruct* fields from a config map
// represented as *fromConfig*. Keys of *fromConfig* that have no matching
// mapstructure field in *toStruct* are rejected, fields missing from
// *fromConfig* keep their current values.
func UpdateStructFromConfig(toStruct any, fromConfig map[string]interface{}) error {
	if fromConfig == nil {
		return fmt.Errorf("source config cannot be nil")
	}

	toVal := reflect.ValueOf(toStruct)
	if toVal.Kind() != reflect.Ptr || toVal.IsNil() {
		return fmt.Errorf("destination must be a non-nil pointer")
	}

	toElemType := toVal.Type().Elem()
	if toElemType.Kind() != reflect.Struct {
		return fmt.Errorf("destination must be a pointer to a struct, got pointer to %v", toElemType.Kind())
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           toStruct,
		ZeroFields:       false,
	})
	if err != nil {
		return fmt.Errorf("error creating mapstructure decoder: %w", err)
	}

	return decoder.Decode(fromConfig)
}
