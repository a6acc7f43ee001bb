// -----------------------------------------------------------------------------
// Config Package
// -----------------------------------------------------------------------------
// Bu dosya, query kütüphanesinin ve mlquery CLI'ının merkezi konfigürasyon
// yönetimini sağlar. Ortam değişkenlerini (ve varsa .env / .env.local
// dosyalarını) okuyarak veritabanı, Redis, şema probe cache'i ve sorgu
// ayarlarını tek bir nesnede toplar.
//
// Eksik ortam değişkenleri olduğunda log üzerinden uyarı verir ve default
// değerleri kullanır. Table Map, opsiyonel bir YAML dosyasından yüklenir.
// -----------------------------------------------------------------------------

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config, uygulamanın merkezi yapılandırma nesnesidir.
//
// Nested struct yapısı kullanılarak ilgili ayarlar gruplandırılmıştır:
//   - App: Ortam bilgisi
//   - DB: Veritabanı bağlantısı ve havuz ayarları
//   - Redis: Redis bağlantı ayarları (paylaşılan probe cache ve lock için)
//   - Cache: Şema probe cache ayarları
//   - Query: Table Map dosyası, transaction retry ve advisory lock ayarları
type Config struct {
	App struct {
		Env string // Ortam (development, production, test)
	}

	DB struct {
		Driver          string        // mysql, postgres, sqlite
		DSN             string        // Veritabanı bağlantı string'i
		MaxOpenConns    int           // Maksimum açık bağlantı sayısı
		MaxIdleConns    int           // Maksimum boşta bekleyen bağlantı sayısı
		ConnMaxLifetime time.Duration // Bağlantı maksimum ömrü
		Schema          string        // Probe'larda kullanılacak varsayılan schema
	}

	Redis struct {
		Host     string // Redis host adresi
		Port     int    // Redis port
		Password string // Redis şifresi (opsiyonel)
		DB       int    // Database numarası (0-15)
	}

	Cache struct {
		Driver string        // memory, redis
		Prefix string        // Cache key prefix (namespace)
		TTL    time.Duration // Probe sonuçlarının ömrü, 0 = süresiz
	}

	Query struct {
		TableMapFile  string        // Opsiyonel YAML Table Map dosyası
		RetryAttempts int           // TransactionWithRetry deneme sayısı
		RetrySleep    time.Duration // Denemeler arası bekleme
		LockTimeout   time.Duration // Advisory lock bekleme süresi
	}
}

// loadDotEnv, çalışma dizinindeki .env ve .env.local dosyalarını yükler.
// .env süreçte tanımlı değişkenlere dokunmaz; .env.local ise her şeyi ezer.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("⚠️  Uyarı: .env okunamadı: %v", err)
		}
	}

	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Overload(".env.local"); err != nil {
			log.Printf("⚠️  Uyarı: .env.local okunamadı: %v", err)
		}
	}
}

// Load, ortam değişkenlerini okuyarak Config nesnesini döndürür.
//
// Eksik değişkenlerde varsayılan değerleri kullanır ve log mesajı üretir.
// Önce .env ve .env.local dosyaları yüklenir, ardından ortam okunur.
//
// Döndürür:
//   - *Config: Yapılandırma nesnesi
//
// Örnek kullanım:
//
//	cfg := config.Load()
//	log.Printf("Driver: %s", cfg.DB.Driver)
//	log.Printf("Cache Driver: %s", cfg.Cache.Driver)
func Load() *Config {
	loadDotEnv()

	cfg := &Config{}

	// Helper function: Ortam değişkenini oku, yoksa default kullan
	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		log.Printf("⚠️  Uyarı: %s ortam değişkeni bulunamadı, varsayılan (%s) kullanılıyor.", key, defaultValue)
		return defaultValue
	}

	// Helper function: Integer ortam değişkeni
	getEnvAsInt := func(key string, defaultValue int) int {
		valueStr := os.Getenv(key)
		if valueStr == "" {
			log.Printf("⚠️  Uyarı: %s ortam değişkeni bulunamadı, varsayılan (%d) kullanılıyor.", key, defaultValue)
			return defaultValue
		}

		value, err := strconv.Atoi(valueStr)
		if err != nil {
			log.Printf("⚠️  Uyarı: %s için geçersiz değer: %s, varsayılan (%d) kullanılıyor.", key, valueStr, defaultValue)
			return defaultValue
		}

		return value
	}

	// Helper function: Duration ortam değişkeni (saniye cinsinden)
	getEnvAsDuration := func(key string, defaultSeconds int) time.Duration {
		seconds := getEnvAsInt(key, defaultSeconds)
		return time.Duration(seconds) * time.Second
	}

	// Application Configuration
	cfg.App.Env = getEnv("APP_ENV", "development")

	// Database Configuration
	cfg.DB.Driver = strings.ToLower(getEnv("DB_DRIVER", "mysql"))
	cfg.DB.DSN = getEnv("DB_DSN", "root:password@tcp(127.0.0.1:3306)/monkeys?parseTime=true")
	cfg.DB.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DB.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", 25)
	cfg.DB.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", 300) // 5 dakika
	cfg.DB.Schema = getEnv("DB_SCHEMA", "")

	// Redis Configuration
	cfg.Redis.Host = getEnv("REDIS_HOST", "127.0.0.1")
	cfg.Redis.Port = getEnvAsInt("REDIS_PORT", 6379)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	// Cache Configuration
	cfg.Cache.Driver = strings.ToLower(getEnv("CACHE_DRIVER", "memory")) // memory, redis
	cfg.Cache.Prefix = getEnv("CACHE_PREFIX", "mlquery:")
	cfg.Cache.TTL = getEnvAsDuration("CACHE_TTL", 0)

	// Query Configuration
	cfg.Query.TableMapFile = getEnv("QUERY_TABLE_MAP_FILE", "")
	cfg.Query.RetryAttempts = getEnvAsInt("QUERY_RETRY_ATTEMPTS", 3)
	cfg.Query.RetrySleep = time.Duration(getEnvAsInt("QUERY_RETRY_SLEEP_MS", 100)) * time.Millisecond
	cfg.Query.LockTimeout = getEnvAsDuration("QUERY_LOCK_TIMEOUT", 10)

	// Validation
	if err := cfg.Validate(); err != nil {
		log.Printf("❌ Config validation hatası: %v", err)
	}

	return cfg
}

// Validate, config değerlerinin geçerliliğini kontrol eder.
//
// Kontroller:
// - DB driver geçerliliği
// - Cache driver geçerliliği
// - Retry ayarlarının pozitifliği
//
// Döndürür:
//   - error: Validation hatası (varsa)
func (c *Config) Validate() error {
	validDBDrivers := map[string]bool{
		"mysql":    true,
		"postgres": true,
		"sqlite":   true,
	}
	if !validDBDrivers[c.DB.Driver] {
		return fmt.Errorf("geçersiz DB_DRIVER: %s (mysql, postgres veya sqlite olmalı)", c.DB.Driver)
	}

	if c.DB.DSN == "" {
		return fmt.Errorf("DB_DSN boş olamaz")
	}

	validCacheDrivers := map[string]bool{
		"redis":  true,
		"memory": true,
	}
	if !validCacheDrivers[c.Cache.Driver] {
		return fmt.Errorf("geçersiz CACHE_DRIVER: %s (redis veya memory olmalı)", c.Cache.Driver)
	}

	if c.Query.RetryAttempts < 1 {
		return fmt.Errorf("QUERY_RETRY_ATTEMPTS en az 1 olmalı, verilen: %d", c.Query.RetryAttempts)
	}

	// Production uyarıları
	if c.IsProduction() && c.Cache.Driver == "memory" {
		log.Println("⚠️  UYARI: Memory cache birden fazla process arasında paylaşılmaz!")
	}

	return nil
}

// IsProduction, uygulamanın production ortamında çalışıp çalışmadığını kontrol eder.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsDevelopment, uygulamanın development ortamında çalışıp çalışmadığını kontrol eder.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsTest, uygulamanın test ortamında çalışıp çalışmadığını kontrol eder.
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// -----------------------------------------------------------------------------
// Table Map
// -----------------------------------------------------------------------------

// tableMapFile, YAML Table Map dosyasının şeklidir:
//
//	tables:
//	  member: users
//	  article: posts
type tableMapFile struct {
	Tables map[string]string `yaml:"tables"`
}

// LoadTableMap, verilen YAML dosyasından mantıksal → fiziksel tablo
// eşlemesini okur. path boşsa boş bir map döner.
//
// Parametreler:
//   - path: YAML dosya yolu
//
// Döndürür:
//   - map[string]string: Table Map girdileri
//   - error: Dosya okunamazsa veya YAML geçersizse
//
// Örnek:
//
//	entries, err := config.LoadTableMap(cfg.Query.TableMapFile)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	database.DefaultTableMap().Replace(entries)
func LoadTableMap(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("table map okunamadı: %w", err)
	}

	var file tableMapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("table map parse hatası (%s): %w", path, err)
	}

	out := make(map[string]string, len(file.Tables))
	for logical, physical := range file.Tables {
		logical, physical = strings.TrimSpace(logical), strings.TrimSpace(physical)
		if logical == "" || physical == "" {
			return nil, fmt.Errorf("table map %s: boş tablo adı (%q → %q)", path, logical, physical)
		}
		out[logical] = physical
	}
	return out, nil
}
