package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/coordoffice/cdms-api/pkg/config"
	"github.com/coordoffice/cdms-api/pkg/database"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'STAFF',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		revoked_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS schools (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		contact_person TEXT NOT NULL,
		contact_phone TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		capacity INTEGER,
		num_teachers INTEGER,
		start_time TEXT NOT NULL DEFAULT '',
		end_time TEXT NOT NULL DEFAULT '',
		exam_dates TEXT NOT NULL DEFAULT '',
		holidays TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_schools_name_lower ON schools (LOWER(name))`,
	`CREATE TABLE IF NOT EXISTS visits (
		id UUID PRIMARY KEY,
		school_id UUID NOT NULL REFERENCES schools(id) ON DELETE RESTRICT,
		visit_date DATE NOT NULL,
		visit_time TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'SCHEDULED',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT uq_visits_slot UNIQUE (visit_date, visit_time)
	)`,
	`CREATE TABLE IF NOT EXISTS feedback (
		id UUID PRIMARY KEY,
		visit_id UUID REFERENCES visits(id) ON DELETE SET NULL,
		name TEXT NOT NULL,
		school_name TEXT NOT NULL,
		email TEXT NOT NULL,
		body TEXT NOT NULL,
		trip_date DATE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS report_jobs (
		id UUID PRIMARY KEY,
		type TEXT NOT NULL,
		params JSONB NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'QUEUED',
		progress INTEGER NOT NULL DEFAULT 0,
		result_filename TEXT,
		result_url TEXT,
		created_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		finished_at TIMESTAMPTZ,
		error_message TEXT
	)`,
}

type schoolSeed struct {
	name          string
	address       string
	contactPerson string
	contactPhone  string
	contactEmail  string
	capacity      int
}

var schools = []schoolSeed{
	{"Whitfield Primary & Infant School", "2 Lyndhurst Road, Kingston", "Mrs. Beverly Brown", "876-555-0011", "whitfield@example.com", 420},
	{"St. Alban's Primary & Infant School", "10 Charles Street, Kingston", "Mr. Andre Campbell", "876-555-0012", "stalbans@example.com", 300},
	{"Calabar Infant, Primary & Junior High", "61 Red Hills Road, Kingston", "Mrs. Nadine Thomas", "876-555-0013", "calabar@example.com", 600},
	{"Harbour View Primary School", "Seaside Drive, Harbour View, Kingston 17", "Mrs. Dawn McKenzie", "876-555-0014", "hvprimary@example.com", 800},
	{"Rollington Town Primary", "17 Victoria Street, Kingston", "Mr. Trevor Williams", "876-555-0015", "rtprimary@example.com", 500},
	{"Clan Carthy Primary", "50 Deanery Road, Kingston 3", "Mrs. Paulette Meikle", "876-555-0016", "clancarthy@example.com", 450},
	{"Rousseau Primary School", "1 Ritchings Avenue, Kingston 5", "Ms. Natalie Robinson", "876-555-0017", "rousseau@example.com", 520},
	{"Holy Family Primary", "104-106 Tower Street, Kingston", "Ms. Judith Gayle", "876-555-0018", "holyfamily@example.com", 550},
	{"Alpha Primary School", "26 South Camp Road, Kingston", "Mrs. Kelisha Spencer", "876-555-0019", "alpha@example.com", 370},
	{"St. Aloysius Primary", "33 Duke Street, Kingston", "Mrs. Claire Martin", "876-555-0020", "staloy@example.com", 410},
	{"Rhodes Hall High School", "Green Island P.O., Hanover", "Mr. Damian Burke", "876-555-0021", "rhodeshall@example.com", 900},
	{"Excelsior High School", "137 Mountain View Avenue, Kingston", "Mr. Anthony Hinds", "876-555-0022", "excel@example.com", 2500},
	{"Camperdown High School", "2A Swallowfield Road, Kingston 5", "Mr. Christopher Smart", "876-555-0023", "camperdown@example.com", 1800},
	{"Pembroke Hall High School", "62-64 Chesterfield Drive, Kingston 20", "Ms. Lorraine Salmon", "876-555-0024", "pembroke@example.com", 1400},
	{"Papine High School", "160 Old Hope Road, Kingston 6", "Mr. Owen McLeod", "876-555-0025", "papine@example.com", 1500},
	{"Waterford High School", "Waterford Parkway, Portmore", "Mrs. Marcia Clarke", "876-555-0026", "waterford@example.com", 1300},
	{"Jonathan Grant High", "11 Ginger Ridge Road, Spanish Town", "Mr. Horace Robinson", "876-555-0027", "jgrant@example.com", 1600},
	{"St. Catherine High", "Brunswick Avenue, Spanish Town", "Ms. Marlene Jennings", "876-555-0028", "stcatherine@example.com", 2000},
	{"Kingston High School", "172 King Street, Kingston", "Mr. Lionel Grant", "876-555-0029", "khs@example.com", 1200},
	{"Meadowbrook High School", "41 Meadowbrook Avenue, Kingston 19", "Mrs. Fay Whyte", "876-555-0030", "meadowbrook@example.com", 1600},
	{"Vauxhall High School", "Slipe Pen Road, Kingston", "Mr. Leo Davis", "876-555-0031", "vauxhall@example.com", 1100},
	{"Greater Portmore High", "Braeton Parkway, Portmore", "Ms. Keisha Forbes", "876-555-0032", "gphs@example.com", 1500},
	{"Donald Quarrie High", "Harbour View, Kingston 17", "Mr. Peter Sinclair", "876-555-0033", "dqhigh@example.com", 1200},
	{"Ardenne High School", "10 Ardenne Road, Kingston 10", "Mrs. Nadine Molloy", "876-555-0034", "ardenne@example.com", 1700},
	{"Calabar High School", "61 Red Hills Road, Kingston", "Mr. Vassell", "876-555-0035", "calabarhs@example.com", 1800},
	{"Campion College", "105 Hope Road, Kingston 6", "Mrs. Henry", "876-555-0036", "campion@example.com", 1300},
	{"Immaculate Conception High", "152c Constant Spring Road", "Sister Angella Harris", "876-555-0037", "ichs@example.com", 2000},
	{"Merl Grove High", "77-79 Constant Spring Road", "Mrs. Andrea Davis", "876-555-0038", "merlgrove@example.com", 1500},
	{"St. George's Girls Primary", "North Street, Kingston", "Ms. Sophia Blake", "876-555-0039", "sggps@example.com", 350},
	{"John Mills Infant & Primary", "Donald Quarrie High Drive, Kingston", "Mrs. Karen Gray", "876-555-0040", "johnmills@example.com", 450},
}

func main() {
	var (
		adminEmail    string
		adminPassword string
		skipSchools   bool
	)
	flag.StringVar(&adminEmail, "admin-email", "office@cdms.local", "Initial staff account email")
	flag.StringVar(&adminPassword, "admin-password", "", "Initial staff account password (required)")
	flag.BoolVar(&skipSchools, "skip-schools", false, "Create schema and staff account only")
	flag.Parse()

	if adminPassword == "" {
		log.Fatal("an -admin-password is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			log.Fatalf("failed to apply schema: %v", err)
		}
	}
	log.Println("schema up to date")

	if err := seedAdmin(ctx, db, adminEmail, adminPassword); err != nil {
		log.Fatalf("failed to seed staff account: %v", err)
	}

	if !skipSchools {
		inserted, err := seedSchools(ctx, db)
		if err != nil {
			log.Fatalf("failed to seed schools: %v", err)
		}
		log.Printf("inserted %d schools", inserted)
	}
}

func seedAdmin(ctx context.Context, db *sqlx.DB, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, role, active)
		VALUES ($1, LOWER($2), $3, 'Coordination Office', 'STAFF', TRUE)
		ON CONFLICT (email) DO NOTHING`,
		uuid.NewString(), email, string(hash))
	if err != nil {
		return err
	}
	log.Printf("staff account ready: %s", email)
	return nil
}

func seedSchools(ctx context.Context, db *sqlx.DB) (int, error) {
	inserted := 0
	for _, s := range schools {
		res, err := db.ExecContext(ctx, `
			INSERT INTO schools (id, name, address, contact_person, contact_phone, contact_email, capacity)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT DO NOTHING`,
			uuid.NewString(), s.name, s.address, s.contactPerson, s.contactPhone, s.contactEmail, s.capacity)
		if err != nil {
			return inserted, err
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}
	return inserted, nil
}
