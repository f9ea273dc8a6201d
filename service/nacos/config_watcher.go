package nacos

import (
	"github.com/nacos-group/nacos-sdk-go/v2/vo"

	"linkhub/tools/errs"
)

// ConfigReader is the part of the nacos config client a Source uses.
type ConfigReader interface {
	GetConfig(param vo.ConfigParam) (string, error)
	ListenConfig(params vo.ConfigParam) error
}

// Source reads one remote document and reports its changes.
type Source struct {
	cli    ConfigReader
	dataID string
	group  string
}

func NewSource(cli ConfigReader, dataID, group string) *Source {
	if group == "" {
		group = "DEFAULT_GROUP"
	}
	return &Source{cli: cli, dataID: dataID, group: group}
}

func (s *Source) Fetch() (string, error) {
	content, err := s.cli.GetConfig(vo.ConfigParam{DataId: s.dataID, Group: s.group})
	if err != nil {
		return "", errs.WrapMsg(err, "nacos get config", "data_id", s.dataID, "group", s.group)
	}
	return content, nil
}

// Watch calls onChange with every new version of the document.
func (s *Source) Watch(onChange func(content string)) error {
	err := s.cli.ListenConfig(vo.ConfigParam{
		DataId: s.dataID,
		Group:  s.group,
		OnChange: func(_, _, _, data string) {
			onChange(data)
		},
	})
	if err != nil {
		return errs.WrapMsg(err, "nacos listen config", "data_id", s.dataID)
	}
	return nil
}
