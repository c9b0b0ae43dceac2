package model

// Tables lists every persisted model in migration order.
func Tables() []any {
	return []any{
		&Canteen{},
		&MenuItem{},
		&Order{},
		&OrderLine{},
		&Payment{},
		&PickupToken{},
	}
}
