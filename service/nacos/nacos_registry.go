package nacos

import (
	"github.com/nacos-group/nacos-sdk-go/v2/vo"

	"linkhub/tools/errs"
)

// InstanceRegistrar is the part of the nacos naming client a Registry uses.
type InstanceRegistrar interface {
	RegisterInstance(param vo.RegisterInstanceParam) (bool, error)
	DeregisterInstance(param vo.DeregisterInstanceParam) (bool, error)
}

// Registry announces this gateway node so that load balancers can find it.
type Registry struct {
	ServiceName string
	IP          string
	Port        uint64
	Group       string
	Metadata    map[string]string

	client InstanceRegistrar
}

func NewRegistry(client InstanceRegistrar, serviceName, ip string, port uint64, meta map[string]string) *Registry {
	return &Registry{
		ServiceName: serviceName,
		IP:          ip,
		Port:        port,
		Group:       "DEFAULT_GROUP",
		Metadata:    meta,
		client:      client,
	}
}

func (r *Registry) Register() error {
	ok, err := r.client.RegisterInstance(vo.RegisterInstanceParam{
		Ip:          r.IP,
		Port:        r.Port,
		ServiceName: r.ServiceName,
		GroupName:   r.Group,
		Weight:      10,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true,
		Metadata:    r.Metadata,
	})
	if err != nil {
		return errs.WrapMsg(err, "nacos register", "service", r.ServiceName)
	}
	if !ok {
		return errs.ErrInternalServer.WrapMsg("nacos refused registration", "service", r.ServiceName)
	}
	return nil
}

func (r *Registry) Deregister() error {
	_, err := r.client.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          r.IP,
		Port:        r.Port,
		ServiceName: r.ServiceName,
		GroupName:   r.Group,
		Ephemeral:   true,
	})
	if err != nil {
		return errs.WrapMsg(err, "nacos deregister", "service", r.ServiceName)
	}
	return nil
}
