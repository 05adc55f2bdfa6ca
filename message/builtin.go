package message

// Names of the schemas every courier process knows about.
const (
	EmptyName           = "courier.Empty"
	MappingRequestName  = "courier.internal.GetRequestResponseMappingPairsRequest"
	MappingResponseName = "courier.internal.GetRequestResponseMappingPairsResponse"
)

// Empty carries no fields. Use it for requests that need no arguments or
// handlers that have nothing to return.
type Empty struct{}

func (*Empty) MessageName() string { return EmptyName }

// MappingRequest asks a server for its request → response pairing table.
// It is sent by clients using server reflection and is not meant for
// application use.
type MappingRequest struct{}

func (*MappingRequest) MessageName() string { return MappingRequestName }

// MappingResponse answers a MappingRequest with every request type name the
// server handles, mapped to the response type name it returns.
type MappingResponse struct {
	Mappings map[string]string `json:"mappings"`
}

func (*MappingResponse) MessageName() string { return MappingResponseName }

func init() {
	MustRegister(func() Message { return new(Empty) })
	MustRegister(func() Message { return new(MappingRequest) })
	MustRegister(func() Message { return new(MappingResponse) })
}
