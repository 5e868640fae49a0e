package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	// Shop
	&Product{},
	&Order{},
	&OrderItem{},
}
