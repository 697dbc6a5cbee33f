// Command walletctl is the operator CLI: schema migration, reference data,
// one-off runs of scheduled processors and back-office bootstrap.
package main

import (
	_ "embed"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"walletcore.backend/internal/app"
	"walletcore.backend/internal/config"
	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/infrastructure/datasources/postgres"
	"walletcore.backend/internal/infrastructure/models"
	"walletcore.backend/internal/infrastructure/repositories"
	"walletcore.backend/pkg/crypto"
	"walletcore.backend/pkg/logger"
	"walletcore.backend/pkg/redis"
)

//go:embed currencies.yaml
var defaultCurrencies []byte

type deps struct {
	loadEnv   func() error
	loadCfg   func() *config.Config
	openDB    func(cfg *config.Config, sqlitePath string) (*gorm.DB, error)
	openRedis func(cfg *config.Config) (*goredis.Client, error)
	out       io.Writer
}

func defaultDeps() deps {
	return deps{
		loadEnv: func() error { return godotenv.Load() },
		loadCfg: config.Load,
		openDB: func(cfg *config.Config, sqlitePath string) (*gorm.DB, error) {
			if sqlitePath != "" {
				return gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
			}
			return postgres.NewConnection(cfg.Database)
		},
		openRedis: func(cfg *config.Config) (*goredis.Client, error) {
			return redis.NewClient(cfg.Redis.URL, cfg.Redis.Password)
		},
		out: os.Stdout,
	}
}

var sqliteFlag = &cli.StringFlag{
	Name:    "sqlite",
	Usage:   "use a sqlite database file instead of DATABASE_URL (development)",
	EnvVars: []string{"WALLETCTL_SQLITE"},
}

func newApp(d deps) *cli.App {
	var cfg *config.Config

	return &cli.App{
		Name:      "walletctl",
		Usage:     "operate a walletcore deployment",
		Writer:    d.out,
		ErrWriter: d.out,
		Before: func(c *cli.Context) error {
			if err := d.loadEnv(); err != nil {
				log.Println("No .env file found, using environment variables")
			}
			cfg = d.loadCfg()
			logger.Init(cfg.Server.Env)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "create or update every table",
				Flags: []cli.Flag{sqliteFlag},
				Action: func(c *cli.Context) error {
					db, err := d.openDB(cfg, c.String("sqlite"))
					if err != nil {
						return fmt.Errorf("failed to connect db: %w", err)
					}
					if err := db.AutoMigrate(models.All()...); err != nil {
						return fmt.Errorf("migration failed: %w", err)
					}
					_, _ = fmt.Fprintf(d.out, "migrated %d tables\n", len(models.All()))
					return nil
				},
			},
			{
				Name:  "seed-currencies",
				Usage: "insert or refresh the supported currencies",
				Flags: []cli.Flag{
					sqliteFlag,
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "YAML currency list (defaults to the bundled list)"},
				},
				Action: func(c *cli.Context) error {
					raw := defaultCurrencies
					if path := c.String("file"); path != "" {
						b, err := os.ReadFile(path)
						if err != nil {
							return fmt.Errorf("failed to read %s: %w", path, err)
						}
						raw = b
					}
					currencies, err := parseCurrencies(raw)
					if err != nil {
						return err
					}
					db, err := d.openDB(cfg, c.String("sqlite"))
					if err != nil {
						return fmt.Errorf("failed to connect db: %w", err)
					}
					repo := repositories.NewCurrencyRepository(db)
					for _, cur := range currencies {
						if err := repo.Upsert(c.Context, cur); err != nil {
							return fmt.Errorf("failed to upsert %s: %w", cur.Code, err)
						}
						_, _ = fmt.Fprintf(d.out, "seeded %s\n", cur.Code)
					}
					return nil
				},
			},
			{
				Name:      "run-job",
				Usage:     "run one pass of a scheduled processor",
				ArgsUsage: "<name>",
				Flags:     []cli.Flag{sqliteFlag},
				Action: func(c *cli.Context) error {
					name := c.Args().First()
					if name == "" {
						return fmt.Errorf("job name is required")
					}
					container, closeFn, err := buildContainer(d, cfg, c.String("sqlite"))
					if err != nil {
						return err
					}
					defer closeFn()
					job, ok := container.Job(name)
					if !ok {
						return fmt.Errorf("unknown job %q (known: %s)", name, strings.Join(jobNames(container), ", "))
					}
					job.RunOnce(logger.WithJob(c.Context, name))
					_, _ = fmt.Fprintf(d.out, "ran %s\n", name)
					return nil
				},
			},
			{
				Name:  "jobs",
				Usage: "list scheduled processors",
				Flags: []cli.Flag{sqliteFlag},
				Action: func(c *cli.Context) error {
					container, closeFn, err := buildContainer(d, cfg, c.String("sqlite"))
					if err != nil {
						return err
					}
					defer closeFn()
					for _, n := range jobNames(container) {
						_, _ = fmt.Fprintln(d.out, n)
					}
					return nil
				},
			},
			{
				Name:  "set-role",
				Usage: "grant a back-office role to an existing user",
				Flags: []cli.Flag{
					sqliteFlag,
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "role", Value: string(entities.UserRoleAdmin)},
				},
				Action: func(c *cli.Context) error {
					role := entities.UserRole(strings.ToLower(c.String("role")))
					if !role.IsValid() {
						return fmt.Errorf("invalid role %q", c.String("role"))
					}
					db, err := d.openDB(cfg, c.String("sqlite"))
					if err != nil {
						return fmt.Errorf("failed to connect db: %w", err)
					}
					users := repositories.NewUserRepository(db)
					user, err := users.GetByEmail(c.Context, c.String("email"))
					if err != nil {
						return fmt.Errorf("failed to load user %s: %w", c.String("email"), err)
					}
					user.Role = role
					if err := users.Update(c.Context, user); err != nil {
						return fmt.Errorf("failed to update user: %w", err)
					}
					_, _ = fmt.Fprintf(d.out, "user_id=%s role=%s\n", user.ID, role)
					return nil
				},
			},
			{
				Name:  "gen-key",
				Usage: "print a random hex secret for SECRET_KEY or webhook secrets",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "bytes", Value: 32},
				},
				Action: func(c *cli.Context) error {
					if c.Int("bytes") < 16 {
						return fmt.Errorf("--bytes must be at least 16")
					}
					key, err := crypto.GenerateRandomToken(c.Int("bytes"))
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintln(d.out, key)
					return nil
				},
			},
			{
				Name:      "hash-password",
				Usage:     "print the bcrypt hash of a password",
				ArgsUsage: "<password>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("exactly one password is required")
					}
					hash, err := crypto.HashPassword(c.Args().First())
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintln(d.out, hash)
					return nil
				},
			},
		},
	}
}

func buildContainer(d deps, cfg *config.Config, sqlitePath string) (*app.Container, func(), error) {
	db, err := d.openDB(cfg, sqlitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect db: %w", err)
	}
	cache, err := d.openRedis(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	c, err := app.New(cfg, db, cache, cache)
	if err != nil {
		_ = cache.Close()
		return nil, nil, err
	}
	return c, func() { _ = cache.Close() }, nil
}

func jobNames(c *app.Container) []string {
	var names []string
	for _, j := range c.Jobs() {
		names = append(names, j.Name())
	}
	return names
}

type currencyRow struct {
	Code            string `yaml:"code"`
	Name            string `yaml:"name"`
	Symbol          string `yaml:"symbol"`
	DecimalPlaces   int32  `yaml:"decimalPlaces"`
	Crypto          bool   `yaml:"crypto"`
	ExchangeRateUSD string `yaml:"exchangeRateUsd"`
	Inactive        bool   `yaml:"inactive"`
}

func parseCurrencies(raw []byte) ([]*entities.Currency, error) {
	var rows []currencyRow
	if err := yaml.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("invalid currency list: %w", err)
	}
	out := make([]*entities.Currency, 0, len(rows))
	for _, r := range rows {
		if len(r.Code) < 3 || r.DecimalPlaces < 0 {
			return nil, fmt.Errorf("invalid currency %q", r.Code)
		}
		rate, err := decimal.NewFromString(r.ExchangeRateUSD)
		if err != nil || !rate.IsPositive() {
			return nil, fmt.Errorf("invalid exchange rate for %s: %q", r.Code, r.ExchangeRateUSD)
		}
		out = append(out, &entities.Currency{
			Code:            strings.ToUpper(r.Code),
			Name:            r.Name,
			Symbol:          r.Symbol,
			DecimalPlaces:   r.DecimalPlaces,
			IsCrypto:        r.Crypto,
			ExchangeRateUSD: rate,
			IsActive:        !r.Inactive,
		})
	}
	return out, nil
}

func main() {
	if err := newApp(defaultDeps()).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
