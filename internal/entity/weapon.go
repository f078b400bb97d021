package entity

// Weapon describes one entry of the weapon catalog: damage range, bullet
// ballistics and the dispersion cone the AI's shot planner reasons
// about.
type Weapon struct {
	ID            string
	Name          string
	MinDamage     float64
	MaxDamage     float64
	BulletSpeed   float64
	BulletMass    float64
	MaxTravel     float64
	DispersionRad float64 // half-angle of the aiming cone, radians
	Cooldown      float64 // seconds between shots
	MagazineSize  int
	ReloadSeconds float64
}

var catalog = map[string]*Weapon{
	"pistol": {
		ID: "pistol", Name: "Pistol",
		MinDamage: 8, MaxDamage: 14,
		BulletSpeed: 1400, BulletMass: 0.2, MaxTravel: 1800,
		DispersionRad: 0.03, Cooldown: 0.25, MagazineSize: 12, ReloadSeconds: 1.2,
	},
	"smg": {
		ID: "smg", Name: "SMG",
		MinDamage: 5, MaxDamage: 9,
		BulletSpeed: 1600, BulletMass: 0.15, MaxTravel: 1600,
		DispersionRad: 0.06, Cooldown: 0.09, MagazineSize: 30, ReloadSeconds: 1.8,
	},
	"shotgun": {
		ID: "shotgun", Name: "Shotgun",
		MinDamage: 4, MaxDamage: 10,
		BulletSpeed: 1100, BulletMass: 0.3, MaxTravel: 700,
		DispersionRad: 0.18, Cooldown: 0.8, MagazineSize: 6, ReloadSeconds: 2.2,
	},
	"rifle": {
		ID: "rifle", Name: "Rifle",
		MinDamage: 18, MaxDamage: 26,
		BulletSpeed: 2200, BulletMass: 0.25, MaxTravel: 3000,
		DispersionRad: 0.015, Cooldown: 0.5, MagazineSize: 8, ReloadSeconds: 1.6,
	},
}

// GetWeapon looks up a catalog entry by id.
func GetWeapon(id string) (*Weapon, bool) {
	w, ok := catalog[id]
	return w, ok
}

// AllWeapons returns every catalog entry. Order is unspecified.
func AllWeapons() []*Weapon {
	out := make([]*Weapon, 0, len(catalog))
	for _, w := range catalog {
		out = append(out, w)
	}
	return out
}
