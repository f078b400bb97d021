package physics

// Ricochet is the default elastic/inelastic-blend collision resolver
// registered for bullet-versus-wall-line callbacks. It is exported so
// the entity layer can register it directly, or wrap it, for whichever
// (tagA, tagB) pairs need wall-bounce behaviour.
func Ricochet(point, line *Body, lineNormal Vector) {
	el := (point.Elasticity + line.Elasticity) * 0.5
	m1, m2 := point.EffectiveMass(), line.EffectiveMass()
	total := m1 + m2
	if total <= 0 {
		return
	}

	v1 := point.VelocityVector()
	v2 := line.VelocityVector()

	inel := v1.Scale(m1).Add(v2.Scale(m2)).Scale(1.0 / total)

	el1 := v1.Scale((m1 - m2) / total).Add(v2.Scale(2 * m2 / total))
	el2 := v2.Scale((m2 - m1) / total).Add(v1.Scale(2 * m1 / total))

	blended1 := inel.Lerp(el1, el)
	blended2 := inel.Lerp(el2, el)

	newDir := point.Dir.Reflect(lineNormal).Normalized()
	if newDir == (Vector{}) {
		newDir = point.Dir
	}
	point.Dir = newDir
	point.Velocity = blended1.Length()

	if !line.Fixed {
		speed := blended2.Length()
		if speed > 1e-9 {
			line.Dir = blended2.Normalized()
		}
		line.Velocity = speed
	}
}
