package commands

import (
	"errors"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gogpu/tileview"
)

// Config holds CLI settings.
type Config struct {
	LogLevel            string        `mapstructure:"log-level"`
	GridDivisions       int           `mapstructure:"grid-divisions"`
	IdleTimeout         time.Duration `mapstructure:"idle-timeout"`
	QueueSize           int           `mapstructure:"queue-size"`
	SuppressOrientation bool          `mapstructure:"suppress-orientation"`
	Surface             string        `mapstructure:"surface"`
}

// LoadConfig merges defaults, the config file, TILEVIEW_* environment
// variables and flags. A missing config file is not an error.
func LoadConfig(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetDefault("surface", "800x600")

	v.SetEnvPrefix("TILEVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("tileview")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// ViewerOptions converts the settings into viewer options.
func (c Config) ViewerOptions() []tileview.Option {
	var opts []tileview.Option
	if c.GridDivisions > 0 {
		opts = append(opts, tileview.WithGridDivisions(c.GridDivisions))
	}
	if c.IdleTimeout > 0 {
		opts = append(opts, tileview.WithIdleTimeout(c.IdleTimeout))
	}
	if c.QueueSize > 0 {
		opts = append(opts, tileview.WithQueueSize(c.QueueSize))
	}
	if c.SuppressOrientation {
		opts = append(opts, tileview.WithSuppressOrientation(true))
	}
	return opts
}

// SurfaceSize parses Surface.
func (c Config) SurfaceSize() (image.Point, error) {
	return parseSize(c.Surface)
}

func parseSize(s string) (image.Point, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return image.Point{}, fmt.Errorf("size %q: want WxH", s)
	}
	x, errX := strconv.Atoi(strings.TrimSpace(w))
	y, errY := strconv.Atoi(strings.TrimSpace(h))
	if errX != nil || errY != nil || x <= 0 || y <= 0 {
		return image.Point{}, fmt.Errorf("size %q: want positive WxH", s)
	}
	return image.Pt(x, y), nil
}

func parsePoint(s string) (image.Point, error) {
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return image.Point{}, fmt.Errorf("point %q: want X,Y", s)
	}
	x, errX := strconv.Atoi(strings.TrimSpace(a))
	y, errY := strconv.Atoi(strings.TrimSpace(b))
	if errX != nil || errY != nil {
		return image.Point{}, fmt.Errorf("point %q: want integers", s)
	}
	return image.Pt(x, y), nil
}
