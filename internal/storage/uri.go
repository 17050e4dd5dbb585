package storage

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Supported location schemes
const (
	SchemeABFS  = "abfs"
	SchemeABFSS = "abfss"
	SchemeWASB  = "wasb"
	SchemeWASBS = "wasbs"
	SchemeFile  = "file"
)

// EndpointSuffixes lists the Azure clouds a location may point at
var EndpointSuffixes = []string{
	"core.windows.net",
	"core.usgovcloudapi.net",
	"core.chinacloudapi.cn",
	"core.cloudapi.de",
}

var (
	accountPattern   = regexp.MustCompile(`^[a-z0-9]{1,24}$`)
	containerPattern = regexp.MustCompile(`^(\$root|\$web|[a-z0-9][a-z0-9-]{0,62})$`)
)

// Location is a parsed storage URI such as
// abfss://container@account.dfs.core.windows.net/dir/file.csv
type Location struct {
	Scheme    string
	Container string
	Account   string
	// Service is "dfs" or "blob"
	Service string
	// EndpointSuffix is the host part after the service, usually core.windows.net
	EndpointSuffix string
	// Path is relative to the container root for azure schemes and absolute for file
	Path string
}

// ParseURI parses an abfs(s), wasb(s) or file URI
func ParseURI(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %s: %v", ErrInvalidURI, raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case SchemeFile:
		if u.Host != "" && u.Host != "localhost" {
			return Location{}, fmt.Errorf("%w: %s: file URIs cannot name a host", ErrInvalidURI, raw)
		}
		p := u.Path
		if p == "" {
			p = "/"
		}
		return Location{Scheme: scheme, Path: path.Clean(p)}, nil

	case SchemeABFS, SchemeABFSS, SchemeWASB, SchemeWASBS:
		container := u.User.Username()
		if container == "" {
			return Location{}, fmt.Errorf("%w: %s: missing container", ErrInvalidURI, raw)
		}
		if !containerPattern.MatchString(container) {
			return Location{}, fmt.Errorf("%w: %s: invalid container name %q", ErrInvalidURI, raw, container)
		}
		parts := strings.SplitN(u.Hostname(), ".", 3)
		if len(parts) != 3 || parts[0] == "" {
			return Location{}, fmt.Errorf("%w: %s: host must be <account>.<service>.<suffix>", ErrInvalidURI, raw)
		}
		if !accountPattern.MatchString(parts[0]) {
			return Location{}, fmt.Errorf("%w: %s: invalid account name %q", ErrInvalidURI, raw, parts[0])
		}
		if parts[1] != "dfs" && parts[1] != "blob" {
			return Location{}, fmt.Errorf("%w: %s: unknown storage service %q", ErrInvalidURI, raw, parts[1])
		}
		if !knownSuffix(parts[2]) {
			return Location{}, fmt.Errorf("%w: %s: unknown endpoint suffix %q", ErrInvalidURI, raw, parts[2])
		}
		return Location{
			Scheme:         scheme,
			Container:      container,
			Account:        parts[0],
			Service:        parts[1],
			EndpointSuffix: parts[2],
			Path:           cleanRelative(u.Path),
		}, nil

	default:
		return Location{}, fmt.Errorf("%w: %s: unsupported scheme %q", ErrInvalidURI, raw, u.Scheme)
	}
}

// IsAzure reports whether the location names an Azure storage account
func (l Location) IsAzure() bool {
	return l.Scheme != SchemeFile
}

// Within reports whether l addresses root or something below it. Azure
// locations match on account, container and cloud; the scheme and service
// may differ, as abfss and wasbs name the same data.
func (l Location) Within(root Location) bool {
	if l.IsAzure() != root.IsAzure() {
		return false
	}
	if l.IsAzure() && (l.Account != root.Account || l.Container != root.Container || l.EndpointSuffix != root.EndpointSuffix) {
		return false
	}
	rootPath := strings.TrimSuffix(root.Path, "/")
	switch {
	case rootPath == "":
		return true
	case l.Path == rootPath:
		return true
	default:
		return strings.HasPrefix(l.Path, rootPath+"/")
	}
}

// Join returns a copy of the location with elem appended to its path
func (l Location) Join(elem ...string) Location {
	joined := path.Join(append([]string{l.Path}, elem...)...)
	if l.IsAzure() {
		l.Path = cleanRelative(joined)
	} else {
		l.Path = path.Clean("/" + joined)
	}
	return l
}

// WithPath returns a copy of the location pointing at p
func (l Location) WithPath(p string) Location {
	if l.IsAzure() {
		l.Path = cleanRelative(p)
	} else {
		l.Path = path.Clean("/" + p)
	}
	return l
}

// Host returns the account host, e.g. account.dfs.core.windows.net
func (l Location) Host() string {
	return fmt.Sprintf("%s.%s.%s", l.Account, l.Service, l.EndpointSuffix)
}

// BlobServiceURL returns the blob endpoint of the account. Data lake (dfs)
// locations are served through the blob API as well.
func (l Location) BlobServiceURL() string {
	return fmt.Sprintf("https://%s.blob.%s/", l.Account, l.EndpointSuffix)
}

// String formats the location back into a URI
func (l Location) String() string {
	if !l.IsAzure() {
		return "file://" + l.Path
	}
	s := fmt.Sprintf("%s://%s@%s", l.Scheme, l.Container, l.Host())
	if l.Path != "" {
		s += "/" + l.Path
	}
	return s
}

// AccountKeyConfig returns the extra-config key carrying an account key,
// e.g. fs.azure.account.key.myaccount.blob.core.windows.net
func AccountKeyConfig(account string) string {
	return fmt.Sprintf("fs.azure.account.key.%s.blob.core.windows.net", account)
}

// SASConfig returns the extra-config key carrying a container SAS token
func SASConfig(container, account string) string {
	return fmt.Sprintf("fs.azure.sas.%s.%s.blob.core.windows.net", container, account)
}

func knownSuffix(suffix string) bool {
	for _, s := range EndpointSuffixes {
		if s == suffix {
			return true
		}
	}
	return false
}

func cleanRelative(p string) string {
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}
