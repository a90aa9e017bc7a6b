package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	Redis           Category = "Redis"
	RabbitMQ        Category = "RabbitMQ"
	MongoDB         Category = "MongoDB"
	Store           Category = "Store"
	Janitor         Category = "Janitor"
	Membership      Category = "Membership"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Store
	Subscribe SubCategory = "Subscribe"
	Delete    SubCategory = "Delete"

	// Janitor
	Sweep  SubCategory = "Sweep"
	Orphan SubCategory = "Orphan"
	Lease  SubCategory = "Lease"

	// Membership
	Join  SubCategory = "Join"
	Leave SubCategory = "Leave"

	// Messaging
	Publish SubCategory = "Publish"
	Consume SubCategory = "Consume"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	HostIp       ExtraKey = "HostIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	BodySize     ExtraKey = "BodySize"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	RequestBody  ExtraKey = "RequestBody"
	ResponseBody ExtraKey = "ResponseBody"
	ErrorMessage ExtraKey = "ErrorMessage"
	Tenant       ExtraKey = "Tenant"
	RoomID       ExtraKey = "RoomId"
	MemberID     ExtraKey = "MemberId"
	Operation    ExtraKey = "Operation"
	Count        ExtraKey = "Count"
	Duration     ExtraKey = "Duration"
)
