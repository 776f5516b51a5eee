package alexa

// CapabilityTypeAlexaInterface is the type of every capability the skill
// declares.
const CapabilityTypeAlexaInterface = "AlexaInterface"

// Capability is one interface declared for a discovered endpoint.
type Capability struct {
	Type                string         `json:"type"`
	Interface           string         `json:"interface"`
	Version             string         `json:"version"`
	Configuration       map[string]any `json:"configuration,omitempty"`
	ProactivelyReported bool           `json:"proactivelyReported,omitempty"`
}

// NewCapability returns an AlexaInterface capability at version 3.
func NewCapability(iface string) Capability {
	return Capability{
		Type:      CapabilityTypeAlexaInterface,
		Interface: iface,
		Version:   PayloadVersion,
	}
}

// DiscoveryEndpoint describes one appliance in a Discover.Response.
type DiscoveryEndpoint struct {
	EndpointID        string            `json:"endpointId"`
	ManufacturerName  string            `json:"manufacturerName"`
	FriendlyName      string            `json:"friendlyName"`
	Description       string            `json:"description"`
	DisplayCategories []string          `json:"displayCategories"`
	Cookie            map[string]string `json:"cookie,omitempty"`
	Capabilities      []Capability      `json:"capabilities"`
}

// DiscoveryPayload is the payload of Discover.Response.
type DiscoveryPayload struct {
	Endpoints []DiscoveryEndpoint `json:"endpoints"`
}

// DoorbellPressCause is the cause object of a DoorbellPress event.
type DoorbellPressCause struct {
	Type string `json:"type"`
}

// CausePhysicalInteraction is the cause of a press on the physical button.
const CausePhysicalInteraction = "PHYSICAL_INTERACTION"

// DoorbellPressPayload is the payload of the proactive DoorbellPress event.
type DoorbellPressPayload struct {
	Cause     DoorbellPressCause `json:"cause"`
	Timestamp string             `json:"timestamp"`
}
