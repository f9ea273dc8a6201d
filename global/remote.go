package global

import (
	"context"
	"net"
	"strconv"

	"go.uber.org/zap"

	"linkhub/global/config"
	"linkhub/logger"
	"linkhub/service/nacos"
	"linkhub/tools/errs"
)

const serviceName = "linkhub-gateway"

// ConfigNacos overlays the nacos document onto cfg and keeps watching it for
// log level changes. It is a no-op when nacos is not configured.
func ConfigNacos(cfg *config.AppConfig) error {
	if !cfg.Nacos.Enabled() {
		return nil
	}
	cli, err := nacos.NewConfigClient(cfg.Nacos)
	if err != nil {
		return err
	}
	src := nacos.NewSource(cli, cfg.Nacos.DataID, cfg.Nacos.Group)
	if err := config.ApplyRemote(cfg, src); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.SetLevel(cfg.Log.Level)
	return config.WatchLogLevel(src)
}

// registerNode announces the HTTP address in the nacos naming service when
// nacos.register is set.
func (a *App) registerNode() error {
	if !a.Conf.Nacos.Enabled() || !a.Conf.Nacos.Register {
		return nil
	}
	host, portStr, err := net.SplitHostPort(a.Conf.HTTPAddr)
	if err != nil {
		return errs.ErrArgs.WrapMsg("bad http_addr", "addr", a.Conf.HTTPAddr)
	}
	port, err := strconv.ParseUint(portStr, 10, 64)
	if err != nil {
		return errs.ErrArgs.WrapMsg("bad http_addr port", "addr", a.Conf.HTTPAddr)
	}
	if host == "" {
		host = "127.0.0.1"
	}
	naming, err := nacos.NewNamingClient(a.Conf.Nacos)
	if err != nil {
		return err
	}
	reg := nacos.NewRegistry(naming, serviceName, host, port, map[string]string{"node_id": a.Conf.NodeID})
	if err := reg.Register(); err != nil {
		return err
	}
	a.onClose(func(context.Context) error { return reg.Deregister() })
	a.log.Info("registered in nacos", zap.String("service", serviceName), zap.String("ip", host), zap.Uint64("port", port))
	return nil
}
