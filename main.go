package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/qianbin/typedkv/accessor"
	"github.com/qianbin/typedkv/codec"
	"github.com/qianbin/typedkv/kv"
	"github.com/rs/zerolog"
)

type config struct {
	Store    string `yaml:"store" env:"TYPEDKV_STORE" env-description:"redis url of the remote store, in-memory when empty"`
	Bind     string `yaml:"bind" env:"TYPEDKV_BIND" env-default:":5678" env-description:"http bind"`
	Codec    string `yaml:"codec" env:"TYPEDKV_CODEC" env-default:"json" env-description:"value codec, json or msgpack"`
	LogLevel string `yaml:"log_level" env:"TYPEDKV_LOG_LEVEL" env-default:"info" env-description:"trace, debug, info, warn or error"`
}

// loadConfig reads path when given, otherwise the environment alone.
func loadConfig(path string) (*config, error) {
	var (
		cfg config
		err error
	)
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().
		Logger()
}

func main() {
	var (
		path = flag.String("c", "", "config file, the environment is used when empty")
	)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		help, _ := cleanenv.GetDescription(&config{}, nil)
		fmt.Fprintln(flag.CommandLine.Output(), help)
	}
	flag.Parse()

	cfg, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		log.Fatal().Err(err).Msg("bad codec")
	}

	store, err := kv.New(context.Background(), cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to remote store")
	}
	defer store.Close()
	if cfg.Store != "" {
		log.Info().Msg("connected to remote store")
	} else {
		log.Info().Msg("using in-memory store")
	}

	listener, err := net.Listen("tcp", cfg.Bind)
	if err != nil {
		log.Fatal().Err(err).Str("bind", cfg.Bind).Msg("failed to listen http")
	}
	log.Info().Stringer("addr", listener.Addr()).Str("codec", cfg.Codec).Msg("http listening")

	srv := newServer(store, accessor.Helper{Codec: c}, log)
	if err := http.Serve(listener, srv.routes()); err != nil {
		log.Error().Err(err).Msg("http serve")
	}
}
