package avclan

// Known Prius Gen 2 device addresses.
const (
	AddrTouchPanel   Address = 0x000
	AddrButtonInput  Address = 0x040
	AddrClimateCtrl  Address = 0x10C
	AddrMFD          Address = 0x110
	AddrTouchCtrl    Address = 0x114
	AddrClimateAmp   Address = 0x130
	AddrNavigation   Address = 0x178
	AddrHeadUnit     Address = 0x190
	AddrDisplayTouch Address = 0x200
	AddrHybridStatus Address = 0x210
	AddrSystemCtrl   Address = 0x258
	AddrHVAC         Address = 0x310
	AddrDSPAmp       Address = 0x440
	AddrAmp          Address = 0x480
	AddrStatusSink   Address = 0x490
	AddrEnergySource Address = 0xA00
	AddrBroadcast    Address = 0xFFF
)

// deviceNames maps addresses to names observed in Prius Gen 2 captures.
var deviceNames = map[Address]string{
	0x002:            "System Control",
	0x010:            "Power Control",
	0x020:            "Power Status",
	AddrButtonInput:  "Button Input",
	0x080:            "Status",
	0x088:            "Climate Status",
	0x092:            "System Status",
	0x100:            "Device Query",
	AddrClimateCtrl:  "Climate Control",
	AddrMFD:          "Multi-Function Display",
	AddrTouchCtrl:    "Touch Controller",
	AddrClimateAmp:   "A/C Amplifier",
	AddrNavigation:   "Navigation ECU",
	0x182:            "ECU Status",
	AddrHeadUnit:     "Audio Head Unit",
	AddrDisplayTouch: "Display/Touch",
	AddrHybridStatus: "Hybrid Status",
	0x218:            "Audio Control",
	0x228:            "Audio Processing",
	AddrSystemCtrl:   "System Controller",
	AddrHVAC:         "HVAC",
	0x400:            "Power/Wake",
	0x430:            "Climate Buttons",
	AddrDSPAmp:       "DSP Amplifier",
	AddrAmp:          "Amplifier",
	AddrStatusSink:   "System Status Sink",
	0x660:            "Display Control",
	0x800:            "Extended",
	AddrEnergySource: "Broadcast Source",
	AddrBroadcast:    "Broadcast",
}

// DeviceName returns the known name for an address, or its hex form.
func DeviceName(a Address) string {
	if name, ok := deviceNames[a]; ok {
		return name
	}
	return "0x" + a.String()
}
