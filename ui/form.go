package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"vpnswitch/vpn"
)

const (
	fieldName = iota
	fieldGateway
	fieldCategory
	fieldProtocol
	fieldUsername
	fieldCert
	fieldAlias
	fieldCount
)

var fieldLabels = [fieldCount]string{
	"Name",
	"Gateway",
	"Category",
	"Protocol",
	"Username",
	"Certificate",
	"Alias",
}

// profileForm is the add/edit modal. When editing, the name field is
// shown but not editable: the name is the key the OS-side entry is
// matched by.
type profileForm struct {
	inputs  [fieldCount]textinput.Model
	focus   int
	editing bool
	name    string
	errMsg  string
}

func newProfileForm(p *vpn.Profile) profileForm {
	placeholders := [fieldCount]string{
		"unique profile name",
		"host or FQDN",
		"Uncategorized",
		"IKEv2",
		"optional",
		"optional path",
		"optional short name",
	}
	f := profileForm{}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 128
		ti.Width = 36
		f.inputs[i] = ti
	}
	if p != nil {
		f.editing = true
		f.name = p.Name
		f.inputs[fieldName].SetValue(p.Name)
		f.inputs[fieldGateway].SetValue(p.Gateway)
		f.inputs[fieldCategory].SetValue(p.Category)
		f.inputs[fieldProtocol].SetValue(p.Protocol)
		f.inputs[fieldUsername].SetValue(p.Username)
		f.inputs[fieldCert].SetValue(p.CertPath)
		f.inputs[fieldAlias].SetValue(p.Alias)
		f.focus = fieldGateway
	}
	f.inputs[f.focus].Focus()
	return f
}

func (f *profileForm) next() {
	f.move(1)
}

func (f *profileForm) prev() {
	f.move(-1)
}

func (f *profileForm) move(delta int) {
	f.inputs[f.focus].Blur()
	for {
		f.focus = (f.focus + delta + fieldCount) % fieldCount
		if f.focus == fieldName && f.editing {
			continue
		}
		break
	}
	f.inputs[f.focus].Focus()
}

func (f *profileForm) update(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *profileForm) value(i int) string {
	return strings.TrimSpace(f.inputs[i].Value())
}

// profile builds a new profile from the form. Validation happens in the
// store; the form just collects values.
func (f *profileForm) profile() *vpn.Profile {
	p := vpn.NewProfile(f.value(fieldName), f.value(fieldGateway))
	p.Category = f.value(fieldCategory)
	if proto := f.value(fieldProtocol); proto != "" {
		p.Protocol = proto
	}
	p.Username = f.value(fieldUsername)
	p.CertPath = f.value(fieldCert)
	p.Alias = f.value(fieldAlias)
	return p
}

// patch carries every editable field. Values were loaded from the
// profile when the form opened, so untouched fields write back
// unchanged.
func (f *profileForm) patch() vpn.Patch {
	gateway := f.value(fieldGateway)
	category := f.value(fieldCategory)
	protocol := f.value(fieldProtocol)
	username := f.value(fieldUsername)
	cert := f.value(fieldCert)
	alias := f.value(fieldAlias)
	return vpn.Patch{
		Gateway:  &gateway,
		Category: &category,
		Protocol: &protocol,
		Username: &username,
		CertPath: &cert,
		Alias:    &alias,
	}
}
