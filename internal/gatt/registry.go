// Package gatt builds the characteristic catalog for a connected
// device and routes value-changed notifications to subscribers.
package gatt

import (
	"errors"
	"fmt"

	"qardioctl/internal/ble"
)

// ErrCharacteristicNotFound reports a UUID absent from the catalog.
var ErrCharacteristicNotFound = errors.New("gatt: characteristic not found")

// Characteristic is one catalog entry. Handle is the discovery
// ordinal, assigned fresh on every Discover.
type Characteristic struct {
	UUID       string
	Handle     int
	Properties ble.Property
	Name       string // semantic annotation, "" when unknown

	transport ble.Characteristic
}

// Read performs a GATT read through the underlying connection.
func (c *Characteristic) Read() ([]byte, error) {
	return c.transport.Read()
}

// Write sends data through the underlying connection.
func (c *Characteristic) Write(data []byte) error {
	return c.transport.Write(data)
}

// Service is one catalog service with its characteristics in
// discovery order.
type Service struct {
	UUID            string
	Name            string
	Characteristics []*Characteristic
}

// Catalog is the GATT table of one connection. It is read-only after
// Discover and must be discarded on disconnect; a stale catalog from
// a previous connection resolves to dead characteristic handles.
type Catalog struct {
	Services []*Service

	byUUID map[string]*Characteristic
}

// Discover enumerates the GATT table of conn and builds the catalog.
// Where the transport cannot report characteristic properties, the
// known-UUID annotation table supplies the profile-defined set.
func Discover(conn ble.Connection) (*Catalog, error) {
	services, err := conn.DiscoverServices()
	if err != nil {
		return nil, fmt.Errorf("gatt: discover: %w", err)
	}

	cat := &Catalog{byUUID: make(map[string]*Characteristic)}
	handle := 0
	for _, svc := range services {
		uuid := NormalizeUUID(svc.UUID)
		s := &Service{UUID: uuid}
		if name, ok := Annotate(uuid); ok {
			s.Name = name
		}
		for _, tc := range svc.Characteristics {
			handle++
			c := &Characteristic{
				UUID:       NormalizeUUID(tc.UUID()),
				Handle:     handle,
				Properties: tc.Properties(),
				transport:  tc,
			}
			if a, ok := lookupAnnotation(c.UUID); ok {
				c.Name = a.name
				if c.Properties == 0 {
					c.Properties = a.props
				}
			}
			s.Characteristics = append(s.Characteristics, c)
			if _, dup := cat.byUUID[c.UUID]; !dup {
				cat.byUUID[c.UUID] = c
			}
		}
		cat.Services = append(cat.Services, s)
	}
	return cat, nil
}

// Characteristic resolves a UUID (short or 128-bit form) to its
// catalog entry.
func (c *Catalog) Characteristic(uuid string) (*Characteristic, error) {
	ch, ok := c.byUUID[NormalizeUUID(uuid)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCharacteristicNotFound, uuid)
	}
	return ch, nil
}
