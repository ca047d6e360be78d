// Package remote reaches scan targets on other machines.
//
// An SSH connection (golang.org/x/crypto/ssh) runs the vidingest binary
// installed on the remote host and streams its JSONL output back line by line.
// The same connection serves SFTP reads (github.com/pkg/sftp) when staging
// copies a file that only exists remotely. Windows hosts running the scanner
// inside WSL are handled by wrapping the command in wsl.exe and translating
// drive paths in both directions.
package remote
