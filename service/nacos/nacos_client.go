package nacos

import (
	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"

	"linkhub/tools/errs"
)

type Config struct {
	Addr      string `json:"addr"`
	Port      uint64 `json:"port"`
	Namespace string `json:"namespace"`
	DataID    string `json:"data_id"`
	Group     string `json:"group"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	TimeoutMs uint64 `json:"timeout_ms"`
	// Register announces this node in the nacos naming service.
	Register bool `json:"register"`
}

func (c Config) Enabled() bool { return c.Addr != "" }

func (c Config) param() vo.NacosClientParam {
	port := c.Port
	if port == 0 {
		port = 8848
	}
	timeout := c.TimeoutMs
	if timeout == 0 {
		timeout = 5000
	}
	opts := []constant.ClientOption{
		constant.WithNamespaceId(c.Namespace),
		constant.WithTimeoutMs(timeout),
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogLevel("warn"),
		constant.WithCacheDir("nacos/cache"),
		constant.WithLogDir("nacos/log"),
	}
	if c.Username != "" {
		opts = append(opts, constant.WithUsername(c.Username), constant.WithPassword(c.Password))
	}
	return vo.NacosClientParam{
		ClientConfig:  constant.NewClientConfig(opts...),
		ServerConfigs: []constant.ServerConfig{*constant.NewServerConfig(c.Addr, port)},
	}
}

func NewConfigClient(c Config) (config_client.IConfigClient, error) {
	cli, err := clients.NewConfigClient(c.param())
	if err != nil {
		return nil, errs.WrapMsg(err, "nacos config client", "addr", c.Addr)
	}
	return cli, nil
}

func NewNamingClient(c Config) (naming_client.INamingClient, error) {
	cli, err := clients.NewNamingClient(c.param())
	if err != nil {
		return nil, errs.WrapMsg(err, "nacos naming client", "addr", c.Addr)
	}
	return cli, nil
}
