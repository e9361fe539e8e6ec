package service

import (
	"context"
	"sync"
	"time"

	"zeroplus/course-app/internal/domain"
	"zeroplus/course-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeCourseRepo is an in-memory CourseRepository. UpdateAssignments honors
// the contract: mutate runs against a snapshot, a mutate error aborts without
// persisting, and forceConflicts simulates losing the conditional write.
type fakeCourseRepo struct {
	mu             sync.Mutex
	courses        map[primitive.ObjectID]*domain.Course
	forceConflicts bool
}

func newFakeCourseRepo() *fakeCourseRepo {
	return &fakeCourseRepo{courses: map[primitive.ObjectID]*domain.Course{}}
}

func (r *fakeCourseRepo) put(course *domain.Course) primitive.ObjectID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if course.ID == primitive.NilObjectID {
		course.ID = primitive.NewObjectID()
	}
	r.courses[course.ID] = copyCourse(course)
	return course.ID
}

// copyCourse deep-copies through the bson codec so mutations of a snapshot
// never leak into the stored document.
func copyCourse(course *domain.Course) *domain.Course {
	raw, err := bson.Marshal(course)
	if err != nil {
		panic(err)
	}
	var out domain.Course
	if err := bson.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return &out
}

func (r *fakeCourseRepo) Create(_ context.Context, course *domain.Course) (primitive.ObjectID, error) {
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	if course.Students == nil {
		course.Students = []string{}
	}
	if course.Homework == nil {
		course.Homework = []domain.Assignment{}
	}
	return r.put(course), nil
}

func (r *fakeCourseRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	course, ok := r.courses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyCourse(course), nil
}

func (r *fakeCourseRepo) List(_ context.Context) ([]domain.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Course, 0, len(r.courses))
	for _, course := range r.courses {
		out = append(out, *copyCourse(course))
	}
	return out, nil
}

func (r *fakeCourseRepo) UpdateAssignments(_ context.Context, id primitive.ObjectID, mutate func(*domain.Course) error) (*domain.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.courses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	snapshot := copyCourse(stored)
	if err := mutate(snapshot); err != nil {
		return nil, err
	}
	if r.forceConflicts {
		return nil, repository.ErrTransactionConflict
	}

	snapshot.Revision++
	snapshot.UpdatedAt = time.Now().UTC()
	r.courses[id] = copyCourse(snapshot)
	return snapshot, nil
}

func (r *fakeCourseRepo) UpsertSubmission(_ context.Context, id primitive.ObjectID, assignmentID string, submission domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.courses[id]
	if !ok {
		return repository.ErrNotFound
	}
	assignment, _ := stored.FindAssignment(assignmentID)
	if assignment == nil {
		return repository.ErrNotFound
	}
	if assignment.Submissions == nil {
		assignment.Submissions = map[string]domain.Submission{}
	}
	assignment.Submissions[submission.StudentID] = submission
	stored.Revision++
	return nil
}

func (r *fakeCourseRepo) AddStudent(_ context.Context, id primitive.ObjectID, studentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.courses[id]
	if !ok {
		return repository.ErrNotFound
	}
	for _, existing := range stored.Students {
		if existing == studentID {
			return nil
		}
	}
	stored.Students = append(stored.Students, studentID)
	return nil
}

func (r *fakeCourseRepo) RemoveStudent(_ context.Context, id primitive.ObjectID, studentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.courses[id]
	if !ok {
		return repository.ErrNotFound
	}
	for i, existing := range stored.Students {
		if existing == studentID {
			stored.Students = append(stored.Students[:i], stored.Students[i+1:]...)
			return nil
		}
	}
	return nil
}

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[primitive.ObjectID]*domain.User{}}
}

func (r *fakeUserRepo) put(user domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == primitive.NilObjectID {
		user.ID = primitive.NewObjectID()
	}
	r.users[user.ID] = &user
	return &user
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	r.mu.Lock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			r.mu.Unlock()
			return primitive.NilObjectID, repository.ErrAlreadyExists
		}
	}
	r.mu.Unlock()
	return r.put(*user).ID, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			u := *user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := *user
	return &u, nil
}

func (r *fakeUserRepo) List(_ context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.User, 0, len(r.users))
	for _, user := range r.users {
		out = append(out, *user)
	}
	return out, nil
}

// fakeStorage returns deterministic presigned URLs and records object keys.
type fakeStorage struct {
	mu          sync.Mutex
	uploadKeys  []string
	deletedKeys []string
	failURLs    bool
}

func (s *fakeStorage) GeneratePresignedUploadURL(_ context.Context, objectKey, _ string, _ time.Duration) (string, error) {
	if s.failURLs {
		return "", ErrUploadURLError
	}
	s.mu.Lock()
	s.uploadKeys = append(s.uploadKeys, objectKey)
	s.mu.Unlock()
	return "https://signed.example/put/" + objectKey, nil
}

func (s *fakeStorage) GeneratePresignedDownloadURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	if s.failURLs {
		return "", ErrDownloadURLError
	}
	return "https://signed.example/get/" + objectKey, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.mu.Lock()
	s.deletedKeys = append(s.deletedKeys, objectKey)
	s.mu.Unlock()
	return nil
}
