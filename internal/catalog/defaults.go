package catalog

// Default returns the vocabularies of the Barranquilla deployment.
func Default() Catalog {
	return Catalog{
		VictimConditions: Vocabulary{
			{"Peatón", 1}, {"Pasajero", 2}, {"Acompañante", 3},
			{"Conductor", 4}, {"Ciclista", 5}, {"Motociclista", 6},
		},
		Gravities: Vocabulary{
			{"Herido", 1}, {"Muerto", 2},
		},
		AccidentTypes: Vocabulary{
			{"Choque", 1}, {"Atropello", 2}, {"Volcamiento", 3},
			{"Caída Ocupante", 4}, {"Incendio", 5}, {"Otro", 6},
		},
		Locations: defaultLocations(),
	}
}

func defaultLocations() Vocabulary {
	return Vocabulary{
		{"El Prado", 1}, {"Alto Prado", 2}, {"Villa Country", 3},
		{"Riomar", 4}, {"El Golf", 5}, {"Ciudad Jardín", 6},
		{"Paraíso", 7}, {"Villa Santos", 8}, {"El Limoncito", 9},
		{"Andalucía", 10}, {"Betania", 11}, {"El Recreo", 12},
		{"Boston", 13}, {"Villa Carolina", 14}, {"El Porvenir", 15},
		{"Modelo", 16}, {"Santa Ana", 17}, {"Monte Cristo", 18},
		{"Chiquinquirá", 19}, {"San Roque", 20}, {"Rebolo", 21},
		{"La Luz", 22}, {"Las Nieves", 23}, {"Simón Bolívar", 24},
		{"Los Andes", 25}, {"La Victoria", 26}, {"El Santuario", 27},
		{"La Sierra", 28}, {"El Bosque", 29}, {"Las Malvinas", 30},
		{"La Paz", 31}, {"El Pueblo", 32}, {"Lipaya", 33},
		{"Siape", 34}, {"Las Flores", 35}, {"Adelita de Char", 36},
		{"La Playa", 37}, {"El Ferry", 38}, {"Pasadena", 39},
		{"San Salvador", 40}, {"Bellavista", 41}, {"La Concepción", 42},
		{"Colombia", 43}, {"El Castillo", 44}, {"Miramar", 45},
		{"Buenavista", 46}, {"Las Delicias", 47}, {"América", 48},
		{"El Rosario", 49}, {"Centro", 50}, {"Barlovento", 51},
		{"Villanueva", 52}, {"La Chinita", 53}, {"El Carmen", 54},
		{"Kennedy", 55}, {"Olaya", 56}, {"El Valle", 57},
		{"Los Continentes", 58}, {"Sourdís", 59}, {"La Manga", 60},
		{"Me Quejo", 61}, {"Por Fin", 62}, {"Los Olivos", 63},
		{"La Pradera", 64}, {"El Edén", 65}, {"Las Granjas", 66},
		{"Santo Domingo de Guzmán", 67}, {"Ciudadela 20 de Julio", 68}, {"Villa San Pedro", 69},
		{"Las Américas", 70}, {"7 de Abril", 71}, {"Los Girasoles", 72},
		{"Carrizal", 73}, {"Buenos Aires", 74}, {"Villa Sevilla", 75},
		{"Las Cayenas", 76}, {"El Romance", 77}, {"California", 78},
		{"Cordialidad", 79}, {"Villa San Carlos", 80}, {"La Sierrita", 81},
		{"Evaristo Sourdís", 82}, {"La Gloria", 83}, {"Villa Flor", 84},
		{"El Silencio", 85}, {"La Libertad", 86}, {"Nueva Granada", 87},
		{"San Felipe", 88}, {"Lucero", 89}, {"Carlos Meisel", 90},
		{"Nueva Colombia", 91}, {"Cuchilla de Villate", 92}, {"El Tabor", 93},
		{"La Cumbre", 94}, {"Los Nogales", 95}, {"Campo Alegre", 96},
		{"Las Estrellas", 97}, {"El Limón", 98}, {"Villate", 99},
		{"San Isidro", 100}, {"Alfonso López", 101}, {"Los Pinos", 102},
		{"El Rubí", 103}, {"La Ceiba", 104}, {"La Esmeralda", 105},
		{"El Milagro", 106}, {"Pumarejo", 107}, {"La Unión", 108},
		{"Boyacá", 109}, {"Atlántico", 110}, {"Los Trupillos", 111},
		{"La Magdalena", 112}, {"El Campito", 113}, {"Las Palmas", 114},
		{"La Loma", 115}, {"San José", 116}, {"Moderno", 117},
		{"Montes", 118}, {"San Nicolás", 119}, {"José Antonio Galán", 120},
		{"Villa Blanca", 121}, {"El Parque", 122}, {"Las Terrazas", 123},
	}
}
