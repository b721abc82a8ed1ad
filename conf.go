package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"tileseed/cover"
)

var conf *Conf

// Conf 应用配置
type Conf struct {
	App struct {
		Version string `toml:"version"`
		Title   string `toml:"title"`
	} `toml:"app"`
	Output struct {
		Directory      string `toml:"directory"`
		LogDir         string `toml:"logDir"`
		OutputTerminal bool   `toml:"outputTerminal"`
		Mbtiles        bool   `toml:"mbtiles"`
	} `toml:"output"`
	Task struct {
		Workers      int `toml:"workers"`
		Rounds       int `toml:"rounds"`
		RoundTimeout int `toml:"roundTimeout"` // seconds, 0 = no ceiling
	} `toml:"task"`
	Fetch struct {
		URL       string `toml:"url"`
		CachePath string `toml:"cachePath"`
		Attempts  int    `toml:"attempts"`
		Timeout   int    `toml:"timeout"`   // seconds, per attempt
		BackoffMs int    `toml:"backoffMs"` // base backoff
		JitterMs  int    `toml:"jitterMs"`
	} `toml:"fetch"`
}

// InitConf 初始化配置
func InitConf(cfgFile string) {
	if cfgFile == "" {
		cfgFile = "conf.toml"
	}
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("config file(%s) not exist", cfgFile)
		os.Exit(1)
	}
	viper.SetConfigType("toml")
	viper.SetConfigFile(cfgFile)
	viper.AutomaticEnv() // read in environment variables that match
	err := viper.ReadInConfig()
	if err != nil {
		fmt.Printf("read config file(%s) error, details: %s", viper.ConfigFileUsed(), err)
		os.Exit(1)
	}
	// 设置默认值
	viper.SetDefault("app.version", "v 0.1.0")
	viper.SetDefault("app.title", "MapCloud Tileseed")
	viper.SetDefault("output.directory", "tiles")
	viper.SetDefault("task.workers", 4)
	viper.SetDefault("task.rounds", 3)
	viper.SetDefault("fetch.url", "http://localhost/tile/{z}/{x}/{y}.png")
	viper.SetDefault("fetch.attempts", 3)
	viper.SetDefault("fetch.timeout", 30)
	viper.SetDefault("fetch.backoffMs", 500)
	viper.SetDefault("fetch.jitterMs", 100)

	err = viper.Unmarshal(&conf)
	if err != nil {
		panic("config file parse failed")
	}
}

// Project is one per-project JSON definition: what to cover and how.
type Project struct {
	Name          string          `mapstructure:"name"`
	Description   string          `mapstructure:"description"`
	RenderType    string          `mapstructure:"render_type"`
	BBox          cover.BBox      `mapstructure:"bbox"`
	ZoomLevels    cover.ZoomRange `mapstructure:"zoom_levels"`
	RegionGeojson string          `mapstructure:"region_geojson"`
}

// LoadProject reads and validates a project JSON file. All range and
// ordering checks happen here, once, before any network or filesystem
// work starts.
func LoadProject(path string) (*Project, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read project file %s: %w", path, err)
	}
	var p Project
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("parse project file %s: %w", path, err)
	}

	if p.Name == "" {
		return nil, fmt.Errorf("project file %s: name is required", path)
	}
	if p.RenderType == "" {
		p.RenderType = "bbox"
	}
	if p.RenderType != "bbox" && p.RenderType != "full" {
		return nil, fmt.Errorf("project %s: render_type must be bbox or full, got %q", p.Name, p.RenderType)
	}
	if err := p.ZoomLevels.Validate(); err != nil {
		return nil, fmt.Errorf("project %s: %w", p.Name, err)
	}
	if p.RenderType == "bbox" {
		if p.RegionGeojson != "" {
			bbox, err := cover.RegionBBox(p.RegionGeojson)
			if err != nil {
				return nil, fmt.Errorf("project %s: %w", p.Name, err)
			}
			p.BBox = bbox
		}
		if err := p.BBox.Validate(); err != nil {
			return nil, fmt.Errorf("project %s: %w", p.Name, err)
		}
	}
	return &p, nil
}

// Plan builds the coverage plan the project asks for.
func (p *Project) Plan() (*cover.Plan, error) {
	if p.RenderType == "full" {
		return cover.NewFullPlan(p.ZoomLevels)
	}
	return cover.NewPlan(p.BBox, p.ZoomLevels)
}
