package device

import "strings"

const (
	Manufacturer = "HUUM"
	Model        = "UKU Wi-Fi"
)

// Info is the accessory identity handed to the host and the control planes.
type Info struct {
	ID           string
	Name         string
	Manufacturer string
	Model        string
	SerialNumber string
	Firmware     string
}

func New(id, name string) Info {
	id = strings.TrimSpace(id)
	if id == "" {
		id = "huum-sauna"
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Huum Sauna"
	}
	return Info{
		ID:           id,
		Name:         name,
		Manufacturer: Manufacturer,
		Model:        Model,
		SerialNumber: id,
	}
}
