package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "AGENDAZK_"

type Application struct {
	Port          int           `koanf:"port"`
	Database      Database      `koanf:"db"`
	Notifications Notifications `koanf:"notifications"`
	Redis         Redis         `koanf:"redis"`
	Google        Google        `koanf:"google"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

type Notifications struct {
	// Timezone in which event dates and clock times are interpreted.
	Timezone string `koanf:"timezone"`
	// Rate is the number of deliveries per second allowed across all users.
	Rate  float64 `koanf:"rate"`
	Burst int     `koanf:"burst"`
}

// Redis is optional; when Addr is empty notifications are only logged.
type Redis struct {
	Addr          string `koanf:"addr"`
	Password      string `koanf:"password"`
	DB            int    `koanf:"db"`
	ChannelPrefix string `koanf:"channelprefix"`
}

type Google struct {
	Enabled         bool   `koanf:"enabled"`
	CredentialsFile string `koanf:"credentialsfile"`
	CalendarId      string `koanf:"calendarid"`
}

func Defaults() Application {
	return Application{
		Port: 8181,
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "agendazk",
			Pass:   "",
			Name:   "agendazk",
			Schema: "agendazk",
		},
		Notifications: Notifications{
			Timezone: "Europe/Paris",
			Rate:     10,
			Burst:    20,
		},
		Redis: Redis{
			ChannelPrefix: "agendazk:notifications:",
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
