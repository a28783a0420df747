package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Redis   Redis
	HTTP    HTTP
	Quota   Quota
	Storage Storage
	Media   Media
}

type Redis struct {
	Addr          string `env:"Redis_Address" envDefault:"localhost:6379"`
	Password      string `env:"Redis_Password"`
	DB            int    `env:"Redis_DB"`
	ChannelPrefix string `env:"Redis_ChannelPrefix" envDefault:"bulkq:progress"`
	QuotaPrefix   string `env:"Redis_QuotaPrefix" envDefault:"bulkq:quota"`
}

type HTTP struct {
	ReadTimeout     time.Duration `env:"HTTP_ReadTimeout" envDefault:"60s"`
	WriteTimeout    time.Duration `env:"HTTP_WriteTimeout" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_ShutdownTimeout" envDefault:"30s"`
}

type Quota struct {
	Limit    int           `env:"Quota_Limit" envDefault:"500"`
	Window   time.Duration `env:"Quota_Window" envDefault:"24h"`
	MaxBatch int           `env:"Quota_MaxBatch" envDefault:"100"`
}

type Storage struct {
	Driver    string `env:"Storage_Driver" envDefault:"file"`
	BaseDir   string `env:"Storage_BaseDir" envDefault:"./data"`
	Endpoint  string `env:"Storage_Endpoint"`
	AccessKey string `env:"Storage_AccessKey"`
	SecretKey string `env:"Storage_SecretKey"`
	Bucket    string `env:"Storage_Bucket" envDefault:"bulkq"`
	UseSSL    bool   `env:"Storage_UseSSL"`
}

type Media struct {
	ThumbnailWidth   int           `env:"Media_ThumbnailWidth" envDefault:"256"`
	ThumbnailHeight  int           `env:"Media_ThumbnailHeight" envDefault:"256"`
	FetchTimeout     time.Duration `env:"Media_FetchTimeout" envDefault:"30s"`
	MaxImageBytes    int64         `env:"Media_MaxImageBytes" envDefault:"20971520"`
	RemoveBGEndpoint string        `env:"Media_RemoveBGEndpoint"`
	RemoveBGAPIKey   string        `env:"Media_RemoveBGAPIKey"`
}

// Load reads an optional .env file from the working directory and then
// parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
