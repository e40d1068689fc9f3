package config

import (
	"log"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var validate = validator.New()

// LoadAndWatch 约定读取 config/{service}.yaml，环境变量覆盖，文件变更时热更新到 out。
// defaults 里的 key 用点号路径，例如 "scheduler.deposit_interval"。
// onChange 在每次热更新成功后回调，可以为 nil。
func LoadAndWatch(service string, out interface{}, defaults map[string]any, onChange func()) (*viper.Viper, error) {
	// .env 只是补充环境变量，不存在不算错
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName(service)
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	// 例如 DEPOSIT_SERVICE_STELLAR_HORIZON_URL 覆盖 stellar.horizon_url
	v.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(service, "-", "_")))
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := unmarshal(v, out); err != nil {
		return nil, err
	}
	log.Printf("[%s] config loaded from %s", service, v.ConfigFileUsed())

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("[%s] config file changed: %s", service, e.Name)
		if err := unmarshal(v, out); err != nil {
			log.Printf("[%s] reload config error: %v", service, err)
			return
		}
		if onChange != nil {
			onChange()
		}
		log.Printf("[%s] config reloaded OK", service)
	})
	return v, nil
}

func unmarshal(v *viper.Viper, out interface{}) error {
	if err := v.Unmarshal(out); err != nil {
		return err
	}
	return Validate(out)
}

// Validate 按 validate tag 校验配置结构体
func Validate(out interface{}) error {
	return validate.Struct(out)
}
