package consts

const (
	CHARGE    = 1.6021918e-19 // Elementary charge (C)
	BOLTZMANN = 1.3806226e-23 // Boltzmann constant (J/K)
	KELVIN    = 273.15        // 0 degC in Kelvin (K)
	ROOMTEMP  = 27.0          // Default junction temperature (degC)
)
