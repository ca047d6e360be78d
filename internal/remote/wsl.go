package remote

import (
	"strings"
)

// ToWSLPath converts a Windows drive path (C:\Videos\a.mp4) into its WSL
// mount path (/mnt/c/Videos/a.mp4). Other paths are returned with
// backslashes converted.
func ToWSLPath(p string) string {
	if drive, rest, ok := splitDrive(p); ok {
		rest = strings.ReplaceAll(rest, `\`, "/")
		rest = strings.TrimLeft(rest, "/")
		if rest == "" {
			return "/mnt/" + drive
		}
		return "/mnt/" + drive + "/" + rest
	}
	return strings.ReplaceAll(p, `\`, "/")
}

// FromWSLPath converts a WSL mount path back into a Windows drive path.
// Paths outside /mnt/<drive> are returned unchanged.
func FromWSLPath(p string) string {
	rest, ok := strings.CutPrefix(p, "/mnt/")
	if !ok || rest == "" {
		return p
	}
	drive, tail, _ := strings.Cut(rest, "/")
	if len(drive) != 1 || !isDriveLetter(drive[0]) {
		return p
	}
	return strings.ToUpper(drive) + `:\` + strings.ReplaceAll(tail, "/", `\`)
}

// SFTPPath maps a path as reported by the scanner to the form the remote
// SFTP server accepts. Windows OpenSSH expects /C:/dir/file.
func SFTPPath(platform, p string) string {
	if !strings.EqualFold(platform, "windows") {
		return p
	}
	if drive, rest, ok := splitDrive(p); ok {
		rest = strings.TrimLeft(strings.ReplaceAll(rest, `\`, "/"), "/")
		return "/" + strings.ToUpper(drive) + ":/" + rest
	}
	return strings.ReplaceAll(p, `\`, "/")
}

func splitDrive(p string) (drive, rest string, ok bool) {
	if len(p) < 2 || p[1] != ':' || !isDriveLetter(p[0]) {
		return "", "", false
	}
	return strings.ToLower(p[:1]), p[2:], true
}

func isDriveLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
