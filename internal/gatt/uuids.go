package gatt

// sigBase is the tail shared by all SIG-assigned 128-bit UUIDs.
const sigBase = "-0000-1000-8000-00805f9b34fb"

// Standard UUIDs used by the engine, canonical 128-bit form.
const (
	UUIDBloodPressureService = "00001810" + sigBase
	UUIDDeviceInfoService    = "0000180a" + sigBase
	UUIDBatteryService       = "0000180f" + sigBase

	UUIDBloodPressureMeasurement = "00002a35" + sigBase
	UUIDBloodPressureFeature     = "00002a49" + sigBase
	UUIDBatteryLevel             = "00002a19" + sigBase

	UUIDManufacturerName = "00002a29" + sigBase
	UUIDModelNumber      = "00002a24" + sigBase
	UUIDSerialNumber     = "00002a25" + sigBase
	UUIDFirmwareRevision = "00002a26" + sigBase
	UUIDHardwareRevision = "00002a27" + sigBase
	UUIDSoftwareRevision = "00002a28" + sigBase
	UUIDSystemID         = "00002a23" + sigBase
	UUIDPnPID            = "00002a50" + sigBase
)
