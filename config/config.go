package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Fuentes de rondas soportadas.
const (
	SourceChain = "chain" // contrato on-chain vía RPC
	SourceHTTP  = "http"  // indexer HTTP
	SourcePaper = "paper" // simulador en memoria
)

// Config es la configuración completa del juego.
type Config struct {
	Game    GameConfig    `yaml:"game"`
	Feed    FeedConfig    `yaml:"feed"`
	Chain   ChainConfig   `yaml:"chain"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// GameConfig controla el comportamiento del juego.
type GameConfig struct {
	Owner                  string `yaml:"owner"`   // identidad a seguir; por defecto la address de la clave
	MinBet                 string `yaml:"min_bet"` // decimal, p.ej. "0.01"; el contrato puede subirlo
	RefreshIntervalSeconds int    `yaml:"refresh_interval_seconds"`
	WindowCapacity         int    `yaml:"window_capacity"` // rondas retenidas por el registry
	FetchWorkers           int    `yaml:"fetch_workers"`   // fetches de rondas concurrentes por tick

	minBet decimal.Decimal
}

// FeedConfig selecciona de dónde salen las rondas.
type FeedConfig struct {
	Source  string `yaml:"source"`   // chain | http | paper
	BaseURL string `yaml:"base_url"` // solo para source=http
}

// ChainConfig contiene el acceso al contrato de predicción.
// La clave privada solo se lee de PREDICTION_PRIVATE_KEY, nunca del YAML.
type ChainConfig struct {
	RPCURL          string `yaml:"rpc_url"`
	ContractAddress string `yaml:"contract_address"`
	ChainID         int64  `yaml:"chain_id"`
	PrivateKey      string `yaml:"-"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodifica YAML, aplica overrides de entorno, defaults y valida.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// RefreshInterval devuelve el intervalo de refresh como time.Duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Game.RefreshIntervalSeconds) * time.Second
}

// MinBetAmount devuelve min_bet ya validado.
func (g GameConfig) MinBetAmount() decimal.Decimal {
	return g.minBet
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("PREDICTION_RPC_URL"); v != "" {
		cfg.Chain.RPCURL = v
	}
	if v := os.Getenv("PREDICTION_OWNER"); v != "" {
		cfg.Game.Owner = v
	}
	cfg.Chain.PrivateKey = os.Getenv("PREDICTION_PRIVATE_KEY")
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Game.MinBet == "" {
		cfg.Game.MinBet = "0.001"
	}
	if cfg.Game.RefreshIntervalSeconds <= 0 {
		cfg.Game.RefreshIntervalSeconds = 10
	}
	if cfg.Game.FetchWorkers <= 0 {
		cfg.Game.FetchWorkers = 4
	}
	if cfg.Feed.Source == "" {
		cfg.Feed.Source = SourceChain
	}
	if cfg.Chain.ChainID == 0 {
		cfg.Chain.ChainID = 137 // Polygon
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "profitflip.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// validate comprueba los campos que no tienen default razonable.
func (c *Config) validate() error {
	minBet, err := decimal.NewFromString(c.Game.MinBet)
	if err != nil || !minBet.IsPositive() {
		return fmt.Errorf("game.min_bet %q: must be a positive decimal", c.Game.MinBet)
	}
	c.Game.minBet = minBet

	switch strings.ToLower(c.Feed.Source) {
	case SourceChain:
		if c.Chain.RPCURL == "" || c.Chain.ContractAddress == "" {
			return fmt.Errorf("feed.source=chain requires chain.rpc_url and chain.contract_address")
		}
	case SourceHTTP:
		if c.Feed.BaseURL == "" {
			return fmt.Errorf("feed.source=http requires feed.base_url")
		}
	case SourcePaper:
	default:
		return fmt.Errorf("feed.source %q: want chain, http or paper", c.Feed.Source)
	}
	c.Feed.Source = strings.ToLower(c.Feed.Source)
	return nil
}
