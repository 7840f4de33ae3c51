package cloudinit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Document filenames the NoCloud datasource requests from the seed.
const (
	UserDataFile   = "user-data"
	MetaDataFile   = "meta-data"
	VendorDataFile = "vendor-data"
)

// AdminUser is the single administrative account configured in every
// instance.
const AdminUser = "cloudvm"

// instanceNS namespaces the derived instance ids so the same instance
// name always yields the same id across reboots.
var instanceNS = uuid.MustParse("8d4f62e1-6f3a-4f0c-9c2a-51b8f1e0a7d3")

// userData is the cloud-config document. Password authentication and
// root login are disabled; access is by injected key only.
type userData struct {
	Hostname    string   `yaml:"hostname"`
	Users       []user   `yaml:"users"`
	SSHPwauth   bool     `yaml:"ssh_pwauth"`
	DisableRoot bool     `yaml:"disable_root"`
	Packages    []string `yaml:"packages"`
	RunCmd      []string `yaml:"runcmd"`
}

type user struct {
	Name              string   `yaml:"name"`
	Sudo              string   `yaml:"sudo"`
	Shell             string   `yaml:"shell"`
	Groups            string   `yaml:"groups"`
	LockPasswd        bool     `yaml:"lock_passwd"`
	SSHAuthorizedKeys []string `yaml:"ssh_authorized_keys,omitempty"`
}

type metaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname"`
}

// RenderUserData produces the #cloud-config account/bootstrap document.
func RenderUserData(hostname string, keys []string) ([]byte, error) {
	doc := userData{
		Hostname: hostname,
		Users: []user{{
			Name:              AdminUser,
			Sudo:              "ALL=(ALL) NOPASSWD:ALL",
			Shell:             "/bin/bash",
			Groups:            "wheel",
			LockPasswd:        true,
			SSHAuthorizedKeys: keys,
		}},
		SSHPwauth:   false,
		DisableRoot: true,
		Packages:    []string{"openssh-server"},
		// Service name differs across distros; try both.
		RunCmd: []string{
			"systemctl enable --now sshd || systemctl enable --now ssh",
		},
	}

	body, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal user-data: %w", err)
	}
	return append([]byte("#cloud-config\n"), body...), nil
}

// RenderMetaData produces the instance metadata document. The instance
// id is derived from the instance name, so it is stable for the
// instance's lifetime.
func RenderMetaData(instanceName, hostname string) ([]byte, error) {
	doc := metaData{
		InstanceID:    uuid.NewSHA1(instanceNS, []byte(instanceName)).String(),
		LocalHostname: hostname,
	}
	body, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal meta-data: %w", err)
	}
	return body, nil
}

// WriteDocs renders both documents (plus an empty vendor-data) into dir.
func WriteDocs(dir, instanceName, hostname string, keys []string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create seed dir: %w", err)
	}

	ud, err := RenderUserData(hostname, keys)
	if err != nil {
		return err
	}
	md, err := RenderMetaData(instanceName, hostname)
	if err != nil {
		return err
	}

	files := map[string][]byte{
		UserDataFile:   ud,
		MetaDataFile:   md,
		VendorDataFile: nil,
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
