// -----------------------------------------------------------------------------
// mlquery CLI
// -----------------------------------------------------------------------------
// mlquery, query builder'ın şema çözümlemesini canlı bir veritabanına karşı
// incelemek için küçük bir komut satırı aracıdır:
//
//   - mlquery resolve <table>             → seçilen fiziksel tablo
//   - mlquery column <table> <column>     → kolon var mı, hangi _id varyantı
//   - mlquery preview <table> --where ... → render edilen SQL, parametreler
//
// Ayarlar sırasıyla flag'lerden, MLQUERY_* ortam değişkenlerinden ve
// config paketinin okuduğu DB_* / CACHE_* / QUERY_* değişkenlerinden gelir.
// -----------------------------------------------------------------------------

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/internal/config"
	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/cache"
	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/database"
)

var (
	// Version information (set by build)
	Version = "dev"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand, kök komutu ve alt komutlarını kurar. Flag'ler viper'a
// bağlanır; MLQUERY_DRIVER gibi ortam değişkenleri flag'lerin yerine geçer.
func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("MLQUERY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "mlquery",
		Short:         "Inspect table/column resolution and preview rendered SQL",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if !v.GetBool("verbose") {
				log.SetOutput(io.Discard)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String("driver", "", "Database driver (mysql, postgres, sqlite)")
	flags.String("dsn", "", "Database DSN")
	flags.String("schema", "", "Schema used for metadata probes")
	flags.String("table-map", "", "YAML table map file")
	flags.String("cache-driver", "", "Probe cache driver (memory, redis)")
	flags.BoolP("verbose", "v", false, "Show connection and config logs")
	_ = v.BindPFlags(flags)

	root.AddCommand(
		newResolveCommand(v),
		newColumnCommand(v),
		newPreviewCommand(v),
	)
	return root
}

// session, bir komut çalışması boyunca açık kalan kaynaklardır.
type session struct {
	conn   *database.Connection
	redis  *database.RedisClient
	schema string
}

func (s *session) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	_ = s.conn.Close()
}

// openSession, config + viper ayarlarını birleştirip veritabanına bağlanır.
//
// Adımlar:
//  1. config.Load ile ortam okunur, viper'daki dolu değerler üzerine yazılır.
//  2. Table Map dosyası (varsa) yüklenir.
//  3. CACHE_DRIVER=redis ise probe cache Redis'e taşınır.
//  4. database.Open ile bağlantı açılır.
func openSession(ctx context.Context, v *viper.Viper) (*session, error) {
	cfg := config.Load()
	override := func(target *string, key string) {
		if value := v.GetString(key); value != "" {
			*target = value
		}
	}
	override(&cfg.DB.Driver, "driver")
	override(&cfg.DB.DSN, "dsn")
	override(&cfg.DB.Schema, "schema")
	override(&cfg.Query.TableMapFile, "table-map")
	override(&cfg.Cache.Driver, "cache-driver")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	entries, err := config.LoadTableMap(cfg.Query.TableMapFile)
	if err != nil {
		return nil, err
	}

	logger := log.Default()
	s := &session{schema: cfg.DB.Schema}

	var probeCache cache.Cache
	if cfg.Cache.Driver == "redis" {
		redisCfg := database.DefaultRedisConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.Prefix = cfg.Cache.Prefix

		s.redis, err = database.NewRedisClient(ctx, redisCfg, logger)
		if err != nil {
			return nil, err
		}
		probeCache = s.redis.ProbeCache()
	}

	s.conn, err = database.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, database.ConnectionOptions{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		Schema:          cfg.DB.Schema,
		Tables:          database.NewTableMap(entries),
		Cache:           probeCache,
		CacheTTL:        cfg.Cache.TTL,
		Logger:          logger,
	})
	if err != nil {
		if s.redis != nil {
			_ = s.redis.Close()
		}
		return nil, err
	}
	return s, nil
}

// withSession, komut gövdesini açık bir session ile çalıştırır.
func withSession(v *viper.Viper, fn func(ctx context.Context, s *session) error) error {
	ctx := context.Background()
	s, err := openSession(ctx, v)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer s.Close()
	return fn(ctx, s)
}
