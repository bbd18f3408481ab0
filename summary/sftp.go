package summary

import (
	"fmt"
	"path"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"rtracker/config"
)

// DeliverSFTP uploads an export file to the configured drop directory.
// Delivery is optional: an empty host means the export stays local.
func DeliverSFTP(cfg config.SFTPConfig, filename string, data []byte) error {
	if cfg.Host == "" {
		return nil
	}
	port := cfg.Port
	if port == "" {
		port = "22"
	}

	sshConfig := &ssh.ClientConfig{
		User: cfg.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(cfg.Password),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	sshConn, err := ssh.Dial("tcp", fmt.Sprintf("%s:%s", cfg.Host, port), sshConfig)
	if err != nil {
		return fmt.Errorf("failed to dial SFTP host %s: %w", cfg.Host, err)
	}
	defer sshConn.Close()

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		return fmt.Errorf("failed to open SFTP session: %w", err)
	}
	defer client.Close()

	remote := path.Join(cfg.RemoteDir, filename)
	if cfg.RemoteDir != "" {
		if err := client.MkdirAll(cfg.RemoteDir); err != nil {
			return fmt.Errorf("failed to create remote dir %s: %w", cfg.RemoteDir, err)
		}
	}
	f, err := client.Create(remote)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", remote, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write remote file %s: %w", remote, err)
	}
	return nil
}
