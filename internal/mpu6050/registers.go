// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu6050

import "fmt"

// RegisterInfo describes one register for the register debugger.
type RegisterInfo struct {
	Addr        byte       `json:"-"`
	Address     string     `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// BitField describes a field inside a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

func reg(addr byte, name, desc, access, def string, fields ...BitField) RegisterInfo {
	return RegisterInfo{
		Addr:        addr,
		Address:     fmt.Sprintf("0x%02X", addr),
		Name:        name,
		Description: desc,
		Access:      access,
		Default:     def,
		BitFields:   fields,
	}
}

// Registers returns the register metadata table, in address order.
func Registers() []RegisterInfo {
	return []RegisterInfo{
		reg(RegSmplrtDiv, "SMPLRT_DIV", "Sample Rate Divider", "RW", "0x00",
			BitField{Bits: "7:0", Name: "SMPLRT_DIV", Description: "Sample Rate = Gyro_Output_Rate / (1 + SMPLRT_DIV)", Values: "0-255"}),
		reg(RegConfig, "CONFIG", "Configuration (DLPF)", "RW", "0x00",
			BitField{Bits: "5:3", Name: "EXT_SYNC_SET", Description: "FSYNC pin sampling", Values: "0=Disabled"},
			BitField{Bits: "2:0", Name: "DLPF_CFG", Description: "Digital Low Pass Filter", Values: "0=260Hz, 1=184Hz, 2=94Hz, 3=44Hz, 4=21Hz, 5=10Hz, 6=5Hz"}),
		reg(RegGyroConfig, "GYRO_CONFIG", "Gyroscope Configuration", "RW", "0x00",
			BitField{Bits: "7:5", Name: "XYZG_ST", Description: "Gyro self-test X/Y/Z"},
			BitField{Bits: "4:3", Name: "FS_SEL", Description: "Gyro Full Scale Range", Values: "0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s"}),
		reg(RegAccelConfig, "ACCEL_CONFIG", "Accelerometer Configuration", "RW", "0x00",
			BitField{Bits: "7:5", Name: "XYZA_ST", Description: "Accel self-test X/Y/Z"},
			BitField{Bits: "4:3", Name: "AFS_SEL", Description: "Accel Full Scale Range", Values: "0=±2g, 1=±4g, 2=±8g, 3=±16g"}),
		reg(RegIntPinCfg, "INT_PIN_CFG", "INT Pin / Bypass Enable Configuration", "RW", "0x00",
			BitField{Bits: "7", Name: "INT_LEVEL", Description: "INT pin active low", Values: "0=Active high, 1=Active low"},
			BitField{Bits: "5", Name: "LATCH_INT_EN", Description: "Latch INT pin", Values: "0=50us pulse, 1=Latch"},
			BitField{Bits: "1", Name: "I2C_BYPASS_EN", Description: "Auxiliary I2C bypass", Values: "0=Disabled, 1=Enabled"}),
		reg(RegIntEnable, "INT_ENABLE", "Interrupt Enable", "RW", "0x00",
			BitField{Bits: "4", Name: "FIFO_OFLOW_EN", Description: "FIFO overflow interrupt"},
			BitField{Bits: "0", Name: "DATA_RDY_EN", Description: "Data ready interrupt"}),
		reg(RegIntStatus, "INT_STATUS", "Interrupt Status", "R", "0x00",
			BitField{Bits: "0", Name: "DATA_RDY_INT", Description: "Data ready"}),

		reg(0x3B, "ACCEL_XOUT_H", "Accelerometer X-Axis High Byte", "R", ""),
		reg(0x3C, "ACCEL_XOUT_L", "Accelerometer X-Axis Low Byte", "R", ""),
		reg(0x3D, "ACCEL_YOUT_H", "Accelerometer Y-Axis High Byte", "R", ""),
		reg(0x3E, "ACCEL_YOUT_L", "Accelerometer Y-Axis Low Byte", "R", ""),
		reg(0x3F, "ACCEL_ZOUT_H", "Accelerometer Z-Axis High Byte", "R", ""),
		reg(0x40, "ACCEL_ZOUT_L", "Accelerometer Z-Axis Low Byte", "R", ""),
		reg(0x41, "TEMP_OUT_H", "Temperature High Byte", "R", ""),
		reg(0x42, "TEMP_OUT_L", "Temperature Low Byte", "R", ""),
		reg(0x43, "GYRO_XOUT_H", "Gyroscope X-Axis High Byte", "R", ""),
		reg(0x44, "GYRO_XOUT_L", "Gyroscope X-Axis Low Byte", "R", ""),
		reg(0x45, "GYRO_YOUT_H", "Gyroscope Y-Axis High Byte", "R", ""),
		reg(0x46, "GYRO_YOUT_L", "Gyroscope Y-Axis Low Byte", "R", ""),
		reg(0x47, "GYRO_ZOUT_H", "Gyroscope Z-Axis High Byte", "R", ""),
		reg(0x48, "GYRO_ZOUT_L", "Gyroscope Z-Axis Low Byte", "R", ""),

		reg(RegUserCtrl, "USER_CTRL", "User Control", "RW", "0x00",
			BitField{Bits: "6", Name: "FIFO_EN", Description: "Enable FIFO"},
			BitField{Bits: "5", Name: "I2C_MST_EN", Description: "Enable auxiliary I2C master"}),
		reg(RegPwrMgmt1, "PWR_MGMT_1", "Power Management 1", "RW", "0x40",
			BitField{Bits: "7", Name: "DEVICE_RESET", Description: "Reset all registers"},
			BitField{Bits: "6", Name: "SLEEP", Description: "Sleep mode", Values: "0=Awake, 1=Sleep"},
			BitField{Bits: "2:0", Name: "CLKSEL", Description: "Clock source", Values: "0=Internal 8MHz, 1=PLL gyro X"}),
		reg(RegPwrMgmt2, "PWR_MGMT_2", "Power Management 2", "RW", "0x00",
			BitField{Bits: "5:0", Name: "STBY_XYZ", Description: "Standby per axis"}),
		reg(RegWhoAmI, "WHO_AM_I", "Device identity", "R", "0x68",
			BitField{Bits: "6:1", Name: "WHO_AM_I", Description: "Upper 6 bits of the 7-bit address"}),
	}
}

// RegisterAddrs returns the addresses of all readable registers.
func RegisterAddrs() []byte {
	regs := Registers()
	out := make([]byte, 0, len(regs))
	for _, r := range regs {
		if r.Access != "W" {
			out = append(out, r.Addr)
		}
	}
	return out
}
