package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"

	"github.com/hackgods/emr-backend/internal/access"
	"github.com/hackgods/emr-backend/internal/appointment"
	"github.com/hackgods/emr-backend/internal/directory"
)

var specialities = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var patientCategories = []string{"General", "Chronic", "Emergency", "Pediatric", "Geriatric"}

type userCreator interface {
	CreateUser(ctx context.Context, u *directory.User) error
}

type patientCreator interface {
	CreatePatient(ctx context.Context, p *appointment.Patient) error
}

type seedCounts struct {
	Doctors  int
	Nurses   int
	Patients int
}

func seedCmd() *cobra.Command {
	var (
		counts seedCounts
		seed   uint64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with fake practitioners and patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			faker := gofakeit.New(seed)
			return seedAll(cmd.Context(), cmd.OutOrStdout(), faker, directory.NewPgDirectory(pool), appointment.NewPgRepository(pool), counts)
		},
	}

	cmd.Flags().IntVar(&counts.Doctors, "doctors", 20, "number of doctors to create")
	cmd.Flags().IntVar(&counts.Nurses, "nurses", 10, "number of nurses to create")
	cmd.Flags().IntVar(&counts.Patients, "patients", 500, "number of patients to create")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed, 0 picks one")

	return cmd
}

func seedAll(ctx context.Context, out io.Writer, faker *gofakeit.Faker, users userCreator, patients patientCreator, counts seedCounts) error {
	for _, group := range []struct {
		role  access.Role
		count int
	}{
		{access.RoleDoctor, counts.Doctors},
		{access.RoleNurse, counts.Nurses},
	} {
		for i := 0; i < group.count; i++ {
			u := fakePractitioner(faker, group.role)
			if err := users.CreateUser(ctx, &u); err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "%ss seeded: %d\n", group.role, group.count)
	}

	const progressEvery = 500
	for i := 0; i < counts.Patients; i++ {
		p := fakePatient(faker)
		if err := patients.CreatePatient(ctx, &p); err != nil {
			return err
		}
		if (i+1)%progressEvery == 0 {
			fmt.Fprintf(out, "patients seeded: %d/%d\n", i+1, counts.Patients)
		}
	}
	fmt.Fprintf(out, "patients seeded: %d\n", counts.Patients)

	return nil
}

func fakePractitioner(f *gofakeit.Faker, role access.Role) directory.User {
	first, last := f.FirstName(), f.LastName()
	email := strings.ToLower(first + "." + last + "@" + f.DomainName())
	u := directory.User{
		Username:  strings.ToLower(first+"."+last) + "." + f.DigitN(4),
		FirstName: first,
		LastName:  last,
		Email:     &email,
		Role:      role,
	}
	if role == access.RoleDoctor {
		spec := specialities[f.Number(0, len(specialities)-1)]
		u.Speciality = &spec
	}
	return u
}

func fakePatient(f *gofakeit.Faker) appointment.Patient {
	email := f.Email()
	phone := f.Phone()
	return appointment.Patient{
		FirstName: f.FirstName(),
		LastName:  f.LastName(),
		Email:     &email,
		Phone:     &phone,
		Category:  patientCategories[f.Number(0, len(patientCategories)-1)],
	}
}
