package categorize

// Definition is a predefined category with the substring patterns that
// assign songs to it. Difficulty and ExpectedWords feed the playlists
// built on top of these categories.
type Definition struct {
	Name          string
	Type          string
	Difficulty    int
	ExpectedWords int
	Patterns      []string
}

const (
	typeEra    = "era"
	typeGenre  = "genre"
	typeTheme  = "theme"
	typeArtist = "artist"
)

// levelFor maps a category type to its game settings.
var levelFor = map[string]struct {
	difficulty    int
	expectedWords int
}{
	typeEra:    {30, 4},
	typeGenre:  {40, 5},
	typeTheme:  {50, 6},
	typeArtist: {35, 5},
}

// Fallback catches songs no pattern matched.
var Fallback = Definition{
	Name:          "Variété diverse",
	Type:          "other",
	Difficulty:    25,
	ExpectedWords: 3,
}

var definitions = buildDefinitions()

func buildDefinitions() []Definition {
	type rawDef struct {
		name     string
		patterns []string
	}
	groups := []struct {
		typ  string
		defs []rawDef
	}{
		{typeEra, []rawDef{
			{"Années 60-70", []string{"Jacques Brel", "Charles Aznavour", "Joe Dassin", "Georges Brassens", "Serge Gainsbourg", "Michel Sardou", "Johnny Hallyday"}},
			{"Années 80", []string{"Indochine", "Téléphone", "Jean-Jacques Goldman", "Daniel Balavoine", "France Gall", "Michel Berger", "Desireless", "Images"}},
			{"Années 90-2000", []string{"Céline Dion", "Florent Pagny", "Pascal Obispo", "Lara Fabian", "Patrick Bruel", "Mylène Farmer"}},
			{"Années 2010+", []string{"Soprano", "Angèle", "Orelsan", "Louane", "Vianney", "Maître Gims", "Aya Nakamura"}},
		}},
		{typeGenre, []rawDef{
			{"Rap & Hip-Hop", []string{"rap", "hip-hop", "Booba", "IAM", "MC Solaar", "Diam's", "Orelsan", "Soprano", "Maître Gims", "Aya Nakamura"}},
			{"Chanson française", []string{"chanson", "Jacques Brel", "Charles Aznavour", "Georges Brassens", "Serge Gainsbourg", "Jean Ferrat", "Renaud"}},
			{"Pop française", []string{"pop", "Jenifer", "Christophe Maé", "Zazie", "Jean-Jacques Goldman", "France Gall", "Michel Berger", "Louane", "M. Pokora"}},
			{"Rock français", []string{"rock", "Téléphone", "Indochine", "Louise Attaque", "Noir Désir", "-M-", "BB Brunes"}},
		}},
		{typeTheme, []rawDef{
			{"Chansons d'amour", []string{"amour", "aime", "cœur", "coeur", "je t'", "aimer", "love", "amoureuse"}},
			{"Voyage & Évasion", []string{"voyage", "partir", "route", "chemin", "loin", "mer", "soleil", "île"}},
			{"Fête & Danse", []string{"danse", "danser", "fête", "nuit", "folie", "party", "bouge", "club"}},
			{"Nostalgie & Souvenirs", []string{"souvenir", "temps", "hier", "jadis", "passé", "mémoire", "enfance", "nostalgie"}},
		}},
		{typeArtist, []rawDef{
			{"Goldman & Friends", []string{"Jean-Jacques Goldman", "Céline Dion", "Carole Fredericks"}},
			{"Les grands poètes", []string{"Jacques Brel", "Georges Brassens", "Léo Ferré", "Barbara", "Serge Gainsbourg"}},
			{"Électro-pop française", []string{"Angèle", "Zazie", "Stromae", "Christine and the Queens"}},
			{"La nouvelle scène rap", []string{"Orelsan", "Lomepal", "Nekfeu", "Damso", "Roméo Elvis"}},
		}},
		{typeTheme, []rawDef{
			{"Disney & films", []string{"Disney", "film", "cinéma", "roi", "Hakuna", "Matata", "reine"}},
			{"Chansons engagées", []string{"politique", "engagé", "monde", "liberté", "social"}},
		}},
	}

	var defs []Definition
	for _, group := range groups {
		level := levelFor[group.typ]
		for _, raw := range group.defs {
			defs = append(defs, Definition{
				Name:          raw.name,
				Type:          group.typ,
				Difficulty:    level.difficulty,
				ExpectedWords: level.expectedWords,
				Patterns:      raw.patterns,
			})
		}
	}
	return defs
}

// Definitions returns every predefined category, fallback excluded.
func Definitions() []Definition {
	return definitions
}
