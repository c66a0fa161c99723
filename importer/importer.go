// Package importer parses exported VPN profile files into candidates
// for the profile store. It understands Azure VPN Client XML documents
// (AzVpnProfile, VpnSettings, bare VpnProfile roots), generic XML
// exports via a tag-scraping fallback, and OpenVPN client configs.
package importer

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"vpnswitch/common"
	"vpnswitch/vpn"
)

// profileXML covers the tag spellings seen across Azure VPN Client
// versions. encoding/xml matches names case-sensitively, hence the
// doubled fields.
type profileXML struct {
	Name      string `xml:"Name"`
	NameLower string `xml:"name"`
	Server    string `xml:"Server"`
	FQDN      string `xml:"fqdn"`
	Protocol  string `xml:"Protocol"`
}

// profileListXML decodes any root element carrying VpnProfile children,
// which covers both AzVpnProfile and VpnSettings containers.
type profileListXML struct {
	Profiles []profileXML `xml:"VpnProfile"`
}

// Tag scraping for documents the structured decoder cannot handle:
// namespaced prefixes, unexpected casing, or server addresses kept in
// displayname. Matching is case-insensitive and spans lines.
var (
	reProfileBlock = regexp.MustCompile(`(?is)<(?:\w+:)?(?:AzVpnProfile|VpnProfile)[^>]*>.*?</(?:\w+:)?(?:AzVpnProfile|VpnProfile)>`)
	reNameTag      = regexp.MustCompile(`(?is)<(?:\w+:)?name>\s*(.*?)\s*</(?:\w+:)?name>`)
	reServerTag    = regexp.MustCompile(`(?is)<(?:\w+:)?(?:server|fqdn|displayname)>\s*(.*?)\s*</(?:\w+:)?(?:server|fqdn|displayname)>`)
	reProtocolTag  = regexp.MustCompile(`(?is)<(?:\w+:)?(?:protocol|transportprotocol)>\s*(.*?)\s*</(?:\w+:)?(?:protocol|transportprotocol)>`)
)

// FileResult reports the outcome of parsing one import file.
type FileResult struct {
	Path     string
	Profiles []*vpn.Profile
	Err      error
}

// ParseFile reads and parses one exported profile file, dispatching on
// its extension.
func ParseFile(path string) ([]*vpn.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.WrapError(err, "failed to read import file")
	}
	content := string(data)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ovpn":
		profile, err := ParseOVPN(content, path)
		if err != nil {
			return nil, err
		}
		return []*vpn.Profile{profile}, nil
	case ".xml", ".azvpn":
		return ParseXML(content, path)
	default:
		return nil, fmt.Errorf("%w: unsupported import file type %q", common.ErrInvalidInput, filepath.Ext(path))
	}
}

// ParseXML extracts profile candidates from an Azure VPN Client or
// generic VPN XML export. Entries without both a name and a server are
// skipped; a document yielding no candidates at all is an error.
func ParseXML(content, origin string) ([]*vpn.Profile, error) {
	var entries []profileXML
	switch {
	case strings.Contains(content, "<AzVpnProfile"):
		entries = decodeList(content)
		if len(entries) == 0 {
			entries = decodeSingle(content)
		}
	case strings.Contains(content, "<VpnSettings"):
		entries = decodeList(content)
	case strings.Contains(content, "<VpnProfile"):
		entries = decodeSingle(content)
	}

	candidates := make([]*vpn.Profile, 0, len(entries))
	for _, e := range entries {
		name := firstOf(e.Name, e.NameLower)
		server := firstOf(e.Server, e.FQDN)
		if name == "" || server == "" {
			continue
		}
		candidates = append(candidates, newCandidate(name, server, e.Protocol, origin))
	}

	if len(candidates) == 0 {
		candidates = scrapeXML(content, origin)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no VPN profiles found in XML", common.ErrInvalidInput)
	}
	return candidates, nil
}

// ParseOVPN extracts a single candidate from an OpenVPN client config.
// The first remote directive supplies the gateway and the file base
// name becomes the profile name.
func ParseOVPN(content, origin string) (*vpn.Profile, error) {
	gateway := ""
	protocol := "OpenVPN"

	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "remote":
			if gateway == "" && len(fields) > 1 {
				gateway = fields[1]
			}
		case "proto":
			if len(fields) > 1 {
				protocol = "OpenVPN/" + strings.ToUpper(fields[1])
			}
		}
	}

	if gateway == "" {
		return nil, fmt.Errorf("%w: no remote directive in %s", common.ErrInvalidInput, filepath.Base(origin))
	}

	base := filepath.Base(origin)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return newCandidate(name, gateway, protocol, origin), nil
}

// ScanDir returns the importable files directly under dir. It does not
// descend into subdirectories.
func ScanDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, common.WrapError(err, "failed to read imports directory")
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".xml", ".ovpn", ".azvpn":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// LoadDir parses every importable file under dir. Unparsable files
// produce a FileResult carrying the error; they never abort the scan.
func LoadDir(dir string) ([]FileResult, error) {
	files, err := ScanDir(dir)
	if err != nil {
		return nil, err
	}

	results := make([]FileResult, 0, len(files))
	for _, path := range files {
		profiles, err := ParseFile(path)
		if err != nil {
			common.LogWarn("import: skipping %s: %v", filepath.Base(path), err)
		}
		results = append(results, FileResult{Path: path, Profiles: profiles, Err: err})
	}
	return results, nil
}

// Candidates flattens successfully parsed file results into a single
// candidate list for the store.
func Candidates(results []FileResult) []*vpn.Profile {
	var out []*vpn.Profile
	for _, r := range results {
		out = append(out, r.Profiles...)
	}
	return out
}

func decodeList(content string) []profileXML {
	var doc profileListXML
	if err := xml.Unmarshal([]byte(content), &doc); err != nil {
		return nil
	}
	return doc.Profiles
}

func decodeSingle(content string) []profileXML {
	var p profileXML
	if err := xml.Unmarshal([]byte(content), &p); err != nil {
		return nil
	}
	return []profileXML{p}
}

func scrapeXML(content, origin string) []*vpn.Profile {
	var candidates []*vpn.Profile
	for _, block := range reProfileBlock.FindAllString(content, -1) {
		name := firstMatch(reNameTag, block)
		server := firstMatch(reServerTag, block)
		if name == "" || server == "" {
			continue
		}
		candidates = append(candidates, newCandidate(name, server, firstMatch(reProtocolTag, block), origin))
	}
	return candidates
}

func newCandidate(name, gateway, protocol, origin string) *vpn.Profile {
	p := vpn.NewProfile(name, gateway)
	if protocol = strings.TrimSpace(protocol); protocol != "" {
		p.Protocol = protocol
	}
	p.Source = vpn.SourceImported
	p.OriginPath = origin
	return p
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
